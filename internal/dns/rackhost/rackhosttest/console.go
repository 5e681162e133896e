// Package rackhosttest provides an in-memory Rackhost web console for tests.
// It renders the same page structure the real console does (grid views, Yii
// forms, CSRF tokens) and records every request it serves.
package rackhosttest

import (
	"fmt"
	"html/template"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
)

const (
	// Token is the CSRF token every page of the console carries.
	Token         = "csrf-token-123"
	sessionCookie = "RACKHOST_SESSION"
)

// Record is a record as stored by the console. Name is relative to the zone.
type Record struct {
	ID     string
	ZoneID string
	Name   string
	Type   string
	TTL    string
	Target string
}

type zone struct {
	id     string
	domain string
}

// Console is a fake Rackhost console. Use it as an http.Handler.
type Console struct {
	Email    string
	Password string

	mu          sync.Mutex
	zones       []zone
	records     []Record
	sessions    map[string]bool
	nextID      int
	calls       []string
	finalized   map[string]int
	staged      map[string]int
	unavailable bool
	// MetaOnly renders forms without the hidden CSRF input, leaving the
	// token only in the csrf-key meta tag.
	MetaOnly bool
}

// NewConsole returns an empty console accepting the given credentials.
func NewConsole(email, password string) *Console {
	return &Console{
		Email:     email,
		Password:  password,
		sessions:  map[string]bool{},
		finalized: map[string]int{},
		staged:    map[string]int{},
		nextID:    100,
	}
}

// AddZone adds a zone and returns its id.
func (c *Console) AddZone(domain string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := strconv.Itoa(c.nextID)
	c.zones = append(c.zones, zone{id: id, domain: domain})
	return id
}

// AddRecord adds a published record and returns its id.
func (c *Console) AddRecord(zoneID, name, recordType string, ttl int, target string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addRecordLocked(zoneID, name, recordType, strconv.Itoa(ttl), target)
}

func (c *Console) addRecordLocked(zoneID, name, recordType, ttl, target string) string {
	c.nextID++
	id := strconv.Itoa(c.nextID)
	c.records = append(c.records, Record{ID: id, ZoneID: zoneID, Name: name, Type: recordType, TTL: ttl, Target: target})
	return id
}

// Record returns the stored record with the given id.
func (c *Console) Record(id string) (Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.records {
		if r.ID == id {
			return r, true
		}
	}
	return Record{}, false
}

// Records returns the records of a zone.
func (c *Console) Records(zoneID string) []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Record
	for _, r := range c.records {
		if r.ZoneID == zoneID {
			out = append(out, r)
		}
	}
	return out
}

// Calls returns every request served so far as "METHOD /path".
func (c *Console) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.calls)
}

// CountCalls counts served requests whose "METHOD /path" starts with prefix.
func (c *Console) CountCalls(prefix string) int {
	n := 0
	for _, call := range c.Calls() {
		if strings.HasPrefix(call, prefix) {
			n++
		}
	}
	return n
}

// Finalized returns how many times a zone was finalized.
func (c *Console) Finalized(zoneID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finalized[zoneID]
}

// Staged returns the number of mutations on a zone not yet finalized.
func (c *Console) Staged(zoneID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.staged[zoneID]
}

// SetUnavailable makes every request fail with 503 while on.
func (c *Console) SetUnavailable(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unavailable = on
}

func (c *Console) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, r.Method+" "+r.URL.Path)

	if c.unavailable {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	if r.URL.Path == "/site/login" {
		c.handleLogin(w, r)
		return
	}
	if !c.loggedIn(r) {
		http.Redirect(w, r, "/site/login", http.StatusFound)
		return
	}
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil || r.PostForm.Get("rackhost-csrf") != Token {
			http.Error(w, "Bad Request: unable to verify your data submission", http.StatusBadRequest)
			return
		}
	}

	path := r.URL.Path
	switch {
	case path == "/dnsZone" && r.Method == http.MethodGet:
		c.renderZones(w)
	case strings.HasPrefix(path, "/dnsZone/finalize/") && r.Method == http.MethodGet:
		id := strings.TrimPrefix(path, "/dnsZone/finalize/")
		if _, ok := c.zone(id); !ok {
			http.NotFound(w, r)
			return
		}
		c.finalized[id]++
		c.staged[id] = 0
		http.Redirect(w, r, "/dnsZone/"+id, http.StatusFound)
	case strings.HasPrefix(path, "/dnsZone/") && r.Method == http.MethodGet:
		z, ok := c.zone(strings.TrimPrefix(path, "/dnsZone/"))
		if !ok {
			http.NotFound(w, r)
			return
		}
		c.renderRecords(w, z)
	case path == "/dnsRecord/createOther":
		c.handleCreate(w, r)
	case strings.HasPrefix(path, "/dnsRecord/updateOther/"):
		c.handleUpdate(w, r, strings.TrimPrefix(path, "/dnsRecord/updateOther/"))
	case strings.HasPrefix(path, "/dnsRecord/delete/") && r.Method == http.MethodPost:
		c.handleDelete(w, r, strings.TrimPrefix(path, "/dnsRecord/delete/"))
	default:
		http.NotFound(w, r)
	}
}

func (c *Console) loggedIn(r *http.Request) bool {
	cookie, err := r.Cookie(sessionCookie)
	return err == nil && c.sessions[cookie.Value]
}

func (c *Console) zone(id string) (zone, bool) {
	for _, z := range c.zones {
		if z.id == id {
			return z, true
		}
	}
	return zone{}, false
}

func (c *Console) recordIndex(id string) int {
	for i, r := range c.records {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func (c *Console) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		c.renderLogin(w, "")
		return
	}
	if err := r.ParseForm(); err != nil || r.PostForm.Get("rackhost-csrf") != Token {
		http.Error(w, "Bad Request: unable to verify your data submission", http.StatusBadRequest)
		return
	}
	if r.PostForm.Get("LoginForm[username]") != c.Email || r.PostForm.Get("LoginForm[password]") != c.Password {
		c.renderLogin(w, "Incorrect username or password.")
		return
	}
	c.nextID++
	session := "s" + strconv.Itoa(c.nextID)
	c.sessions[session] = true
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: session, Path: "/"})
	http.Redirect(w, r, "/dnsZone", http.StatusFound)
}

func (c *Console) handleCreate(w http.ResponseWriter, r *http.Request) {
	z, ok := c.zone(r.URL.Query().Get("dnsZoneId"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		c.renderRecordForm(w, Record{Type: "A", TTL: "300"}, "")
		return
	}
	rec := formRecord(r)
	if msg := validate(rec); msg != "" {
		c.renderRecordForm(w, rec, msg)
		return
	}
	c.addRecordLocked(z.id, rec.Name, rec.Type, rec.TTL, rec.Target)
	c.staged[z.id]++
	http.Redirect(w, r, "/dnsZone/"+z.id, http.StatusFound)
}

func (c *Console) handleUpdate(w http.ResponseWriter, r *http.Request, id string) {
	i := c.recordIndex(id)
	if i < 0 {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		c.renderRecordForm(w, c.records[i], "")
		return
	}
	rec := formRecord(r)
	if msg := validate(rec); msg != "" {
		c.renderRecordForm(w, rec, msg)
		return
	}
	rec.ID, rec.ZoneID = id, c.records[i].ZoneID
	c.records[i] = rec
	c.staged[rec.ZoneID]++
	http.Redirect(w, r, "/dnsZone/"+rec.ZoneID, http.StatusFound)
}

func (c *Console) handleDelete(w http.ResponseWriter, r *http.Request, id string) {
	i := c.recordIndex(id)
	if i < 0 {
		http.NotFound(w, r)
		return
	}
	zoneID := c.records[i].ZoneID
	c.records = slices.Delete(c.records, i, i+1)
	c.staged[zoneID]++
	http.Redirect(w, r, "/dnsZone/"+zoneID, http.StatusFound)
}

func formRecord(r *http.Request) Record {
	return Record{
		Name:   r.PostForm.Get("DnsRecordForm[name]"),
		Type:   r.PostForm.Get("DnsRecordForm[type]"),
		TTL:    r.PostForm.Get("DnsRecordForm[ttl]"),
		Target: r.PostForm.Get("DnsRecordForm[target]"),
	}
}

func validate(rec Record) string {
	switch {
	case rec.Target == "":
		return "Target cannot be blank."
	case rec.Type == "":
		return "Type cannot be blank."
	case rec.TTL == "":
		return "TTL cannot be blank."
	}
	return ""
}

var esc = template.HTMLEscapeString

func (c *Console) csrfInput() string {
	if c.MetaOnly {
		return ""
	}
	return `<input type="hidden" name="rackhost-csrf" value="` + Token + `">`
}

func (c *Console) renderLogin(w http.ResponseWriter, errMsg string) {
	var b strings.Builder
	b.WriteString(`<html><head><title>Login</title></head><body><form id="login-form" method="post" action="/site/login">`)
	b.WriteString(`<input type="hidden" name="rackhost-csrf" value="` + Token + `">`)
	if errMsg != "" {
		fmt.Fprintf(&b, `<div class="error-summary"><ul><li>%s</li></ul></div>`, esc(errMsg))
	}
	b.WriteString(`<input type="text" name="LoginForm[username]"><input type="password" name="LoginForm[password]">`)
	b.WriteString(`<button type="submit">Login</button></form></body></html>`)
	writeHTML(w, b.String())
}

func (c *Console) renderZones(w http.ResponseWriter) {
	var b strings.Builder
	b.WriteString(`<html><head><meta name="csrf-key" content="` + Token + `"></head><body>`)
	b.WriteString(`<div id="dns-zone-grid-view"><table><thead><tr><th>Domain</th><th>Status</th></tr></thead><tbody>`)
	for _, z := range c.zones {
		fmt.Fprintf(&b, `<tr><td><a href="/dnsZone/%s">%s</a></td><td><a href="/dnsZone/%s">Manage</a></td></tr>`, z.id, esc(z.domain), z.id)
	}
	b.WriteString(`</tbody></table></div></body></html>`)
	writeHTML(w, b.String())
}

func (c *Console) renderRecords(w http.ResponseWriter, z zone) {
	var b strings.Builder
	b.WriteString(`<html><head><meta name="csrf-key" content="` + Token + `"></head><body>`)
	b.WriteString(`<div id="dns-record-grid-0"><table><thead><tr><th>Name</th><th>Type</th><th>Target</th><th>TTL</th><th></th></tr></thead><tbody>`)
	empty := true
	for _, r := range c.records {
		if r.ZoneID != z.id {
			continue
		}
		empty = false
		fqdn := z.domain
		if r.Name != "" {
			fqdn = r.Name + "." + z.domain
		}
		fmt.Fprintf(&b, `<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td><a href="/dnsRecord/updateOther/%s">Edit</a> <a href="/dnsRecord/delete/%s" data-method="post">Delete</a></td></tr>`,
			esc(fqdn), esc(r.Type), esc(r.Target), esc(r.TTL), r.ID, r.ID)
	}
	if empty {
		b.WriteString(`<tr><td colspan="5"><div class="empty">No results found.</div></td></tr>`)
	}
	b.WriteString(`</tbody></table></div></body></html>`)
	writeHTML(w, b.String())
}

func (c *Console) renderRecordForm(w http.ResponseWriter, rec Record, errMsg string) {
	var b strings.Builder
	b.WriteString(`<html><head><meta name="csrf-key" content="` + Token + `"></head><body><form method="post">`)
	b.WriteString(c.csrfInput())
	fmt.Fprintf(&b, `<input type="text" name="DnsRecordForm[name]" value="%s">`, esc(rec.Name))
	b.WriteString(`<select name="DnsRecordForm[type]">`)
	for _, t := range []string{"A", "AAAA", "CNAME", "TXT"} {
		sel := ""
		if t == rec.Type {
			sel = " selected"
		}
		fmt.Fprintf(&b, `<option value="%s"%s>%s</option>`, t, sel, t)
	}
	b.WriteString(`</select>`)
	fmt.Fprintf(&b, `<input type="text" name="DnsRecordForm[ttl]" value="%s">`, esc(rec.TTL))
	cls := "form-group"
	if errMsg != "" {
		cls += " has-error"
	}
	fmt.Fprintf(&b, `<div class="%s"><input type="text" name="DnsRecordForm[target]" value="%s"><div class="help-block">%s</div></div>`, cls, esc(rec.Target), esc(errMsg))
	b.WriteString(`<button type="submit">Save</button></form></body></html>`)
	writeHTML(w, b.String())
}

func writeHTML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html; charset=UTF-8")
	_, _ = w.Write([]byte(body))
}
