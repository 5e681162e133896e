package rackhost

import (
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	zoneLinkSelector  = "#dns-zone-grid-view tbody td:first-child a"
	recordRowSelector = "#dns-record-grid-0 tbody tr"
	loginPasswordName = "LoginForm[password]"
)

// loginFormShown reports whether the console rendered its login form, which
// it does instead of any protected page once the session is gone.
func loginFormShown(doc *goquery.Document) bool {
	return doc.Find(`input[name="` + loginPasswordName + `"]`).Length() > 0
}

// validationError returns the first form validation message of the page, or
// "" when the console accepted the submission.
func validationError(doc *goquery.Document) string {
	var msg string
	doc.Find(".error-summary li, .has-error .help-block, .invalid-feedback").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		msg = strings.TrimSpace(s.Text())
		return msg == ""
	})
	return msg
}

// formValue reads the current value of a form field, whether it is rendered
// as an input, a select or a textarea.
func formValue(doc *goquery.Document, name string) string {
	sel := `[name="` + name + `"]`
	if v, ok := doc.Find("input" + sel).First().Attr("value"); ok {
		return v
	}
	if s := doc.Find("select" + sel).First(); s.Length() > 0 {
		opt := s.Find("option[selected]").First()
		if opt.Length() == 0 {
			opt = s.Find("option").First()
		}
		if v, ok := opt.Attr("value"); ok {
			return v
		}
		return strings.TrimSpace(opt.Text())
	}
	return doc.Find("textarea" + sel).First().Text()
}

// lastSegment returns the trailing path segment of a link, which is where the
// console puts zone and record identifiers.
func lastSegment(href string) string {
	u, err := url.Parse(href)
	if err != nil || u.Path == "" {
		return ""
	}
	seg := path.Base(u.Path)
	if seg == "/" || seg == "." {
		return ""
	}
	return seg
}
