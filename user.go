package flagkit

import (
	"strings"
	"sync"

	countrylookup "github.com/statsig-io/ip3country-go/pkg/countrylookup"
	"github.com/ua-parser/uap-go/uaparser"
)

// User the decision is made for. Attributes are passed through to the
// decision unchanged; IPAddress and UserAgent are used to derive country,
// browser and OS attributes when those are not already set.
type User struct {
	UserID     string                 `json:"userID"`
	IPAddress  string                 `json:"ip"`
	UserAgent  string                 `json:"userAgent"`
	Country    string                 `json:"country"`
	Attributes map[string]interface{} `json:"attributes"`
}

const (
	attrCountry        = "country"
	attrBrowserName    = "browser_name"
	attrBrowserVersion = "browser_version"
	attrOSName         = "os_name"
	attrOSVersion      = "os_version"
)

// userEnricher lazily loads the IP-to-country table and the UA regex set;
// both take noticeable time to build.
type userEnricher struct {
	countryOptions IPCountryOptions
	uaOptions      UAParserOptions

	countryWG sync.WaitGroup
	uaWG      sync.WaitGroup
	mu        sync.RWMutex
	lookup    *countrylookup.CountryLookup
	parser    *uaparser.Parser
}

func newUserEnricher(countryOptions IPCountryOptions, uaOptions UAParserOptions) *userEnricher {
	e := &userEnricher{countryOptions: countryOptions, uaOptions: uaOptions}
	if !countryOptions.Disabled {
		e.countryWG.Add(1)
		go func() {
			defer e.countryWG.Done()
			lookup := countrylookup.New()
			e.mu.Lock()
			e.lookup = lookup
			e.mu.Unlock()
		}()
	}
	if !uaOptions.Disabled {
		e.uaWG.Add(1)
		go func() {
			defer e.uaWG.Done()
			parser := uaparser.NewFromSaved()
			e.mu.Lock()
			e.parser = parser
			e.mu.Unlock()
		}()
	}
	return e
}

// init blocks until the lookups that are not lazily loaded are ready.
func (e *userEnricher) init() {
	if !e.countryOptions.LazyLoad {
		e.countryWG.Wait()
	}
	if !e.uaOptions.LazyLoad {
		e.uaWG.Wait()
	}
}

func (e *userEnricher) attributes(user User) map[string]interface{} {
	attrs := make(map[string]interface{}, len(user.Attributes)+5)
	for k, v := range user.Attributes {
		attrs[k] = v
	}
	if _, ok := attrs[attrCountry]; !ok {
		if user.Country != "" {
			attrs[attrCountry] = user.Country
		} else if country, ok := e.lookupIP(user.IPAddress); ok {
			attrs[attrCountry] = country
		}
	}
	if client := e.parseUA(user.UserAgent); client != nil {
		setIfAbsent(attrs, attrBrowserName, client.UserAgent.Family)
		setIfAbsent(attrs, attrBrowserVersion, joinVersion(client.UserAgent.Major, client.UserAgent.Minor, client.UserAgent.Patch))
		setIfAbsent(attrs, attrOSName, client.Os.Family)
		setIfAbsent(attrs, attrOSVersion, joinVersion(client.Os.Major, client.Os.Minor, client.Os.Patch, client.Os.PatchMinor))
	}
	return attrs
}

func (e *userEnricher) lookupIP(ip string) (string, bool) {
	if ip == "" || e.countryOptions.Disabled {
		return "", false
	}
	if e.countryOptions.EnsureLoaded {
		e.countryWG.Wait()
	}
	e.mu.RLock()
	lookup := e.lookup
	e.mu.RUnlock()
	if lookup == nil {
		return "", false
	}
	return lookup.LookupIp(ip)
}

func (e *userEnricher) parseUA(ua string) *uaparser.Client {
	if ua == "" || e.uaOptions.Disabled {
		return nil
	}
	if e.uaOptions.EnsureLoaded {
		e.uaWG.Wait()
	}
	e.mu.RLock()
	parser := e.parser
	e.mu.RUnlock()
	if parser == nil {
		return nil
	}
	return parser.Parse(ua)
}

func setIfAbsent(attrs map[string]interface{}, key string, value string) {
	if value == "" {
		return
	}
	if _, ok := attrs[key]; !ok {
		attrs[key] = value
	}
}

func joinVersion(parts ...string) string {
	var r []string
	for _, p := range parts {
		if p != "" {
			r = append(r, p)
		}
	}
	return strings.Join(r, ".")
}
