package federation

import (
	"context"
	"fmt"

	"github.com/go-ldap/ldap/v3"

	"github.com/ferriskey/iam/internal/domain"
)

// LDAPConnector implements Connector against a directory reachable over
// LDAP/LDAPS, using the provider's Config map for bind DN, search base, and
// the attribute names to map onto domain.User.
type LDAPConnector struct {
	// Dial is overridable in tests; defaults to ldap.DialURL.
	Dial func(addr string) (*ldap.Conn, error)
}

func NewLDAPConnector() *LDAPConnector {
	return &LDAPConnector{Dial: ldap.DialURL}
}

func configString(cfg map[string]interface{}, key, def string) string {
	if v, ok := cfg[key].(string); ok && v != "" {
		return v
	}
	return def
}

func (c *LDAPConnector) connect(provider domain.FederationProvider) (*ldap.Conn, error) {
	addr := configString(provider.Config, "url", "")
	if addr == "" {
		return nil, fmt.Errorf("federation provider %q missing ldap url", provider.Name)
	}
	conn, err := c.Dial(addr)
	if err != nil {
		return nil, err
	}

	bindDN := configString(provider.Config, "bind_dn", "")
	bindPassword := configString(provider.Config, "bind_password", "")
	if bindDN != "" {
		if err := conn.Bind(bindDN, bindPassword); err != nil {
			conn.Close()
			return nil, err
		}
	}
	return conn, nil
}

// Bind verifies the service account credentials are usable, then closes
// the probe connection — actual sync opens its own connection.
func (c *LDAPConnector) Bind(ctx context.Context, provider domain.FederationProvider) error {
	conn, err := c.connect(provider)
	if err != nil {
		return err
	}
	defer conn.Close()
	return nil
}

// Sync runs the configured search filter against the directory and maps
// each entry to a domain.User via the provider's attribute-name config.
func (c *LDAPConnector) Sync(ctx context.Context, provider domain.FederationProvider) ([]domain.User, error) {
	conn, err := c.connect(provider)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	searchBase := configString(provider.Config, "search_base", "")
	filter := configString(provider.Config, "user_filter", "(objectClass=person)")
	usernameAttr := configString(provider.Config, "username_attribute", "uid")
	emailAttr := configString(provider.Config, "email_attribute", "mail")
	firstNameAttr := configString(provider.Config, "first_name_attribute", "givenName")
	lastNameAttr := configString(provider.Config, "last_name_attribute", "sn")

	req := ldap.NewSearchRequest(
		searchBase, ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, 0, false,
		filter,
		[]string{usernameAttr, emailAttr, firstNameAttr, lastNameAttr},
		nil,
	)

	result, err := conn.Search(req)
	if err != nil {
		return nil, err
	}

	users := make([]domain.User, 0, len(result.Entries))
	for _, entry := range result.Entries {
		username := entry.GetAttributeValue(usernameAttr)
		if username == "" {
			continue
		}
		users = append(users, domain.User{
			Username:  username,
			Email:     entry.GetAttributeValue(emailAttr),
			Firstname: entry.GetAttributeValue(firstNameAttr),
			Lastname:  entry.GetAttributeValue(lastNameAttr),
			Enabled:   true,
		})
	}
	return users, nil
}
