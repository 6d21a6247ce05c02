package templates

import (
	"strconv"
	"time"

	"github.com/JonMunkholm/artemis-web/internal/notify"
)

// NavItem is one entry of the top navigation.
type NavItem struct {
	Key   string
	Label string
	Href  string
}

// Nav is the site navigation.
var Nav = []NavItem{
	{Key: "scans", Label: "New Scan", Href: "/scans/new"},
	{Key: "current", Label: "Current Scan", Href: "/scans/current"},
	{Key: "repositories", Label: "Repositories", Href: "/search/repositories"},
	{Key: "components", Label: "Components", Href: "/search/components"},
	{Key: "vulnerabilities", Label: "Vulnerabilities", Href: "/search/vulnerabilities"},
	{Key: "keys", Label: "API Keys", Href: "/keys"},
	{Key: "services", Label: "Services", Href: "/services"},
}

// PageParams describes the page chrome.
type PageParams struct {
	Title  string
	Active string // NavItem key

	Notifications []notify.Notification

	// Reauth shows the session expired banner and reloads the page into
	// the sign-in form after ReloadAfter.
	Reauth      bool
	ReloadAfter time.Duration

	// Refresh reloads the page on an interval while set.
	Refresh time.Duration
}

func seconds(d time.Duration) string {
	s := int(d / time.Second)
	if s < 1 {
		s = 1
	}
	return strconv.Itoa(s)
}
