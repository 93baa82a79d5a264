// Package converter provides conversion from the club's transaction log to Beancount format.
package converter

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Account roles a log entry can post to.
const (
	RoleMainPool       = "main_pool"
	RoleValidityPool   = "validity_pool"
	RoleMemberMain     = "member_main"
	RoleMemberValidity = "member_validity"
	RoleLoansMain      = "loans_main"
	RoleLoansValidity  = "loans_validity"
	RoleFines          = "fines"
	RoleInterest       = "interest"
	RolePenalties      = "penalties"
)

// personPlaceholder is replaced with the member's account component.
const personPlaceholder = "{person}"

var defaultAccounts = map[string]string{
	RoleMainPool:       "Assets:Club:MainPool",
	RoleValidityPool:   "Assets:Club:ValidityPool",
	RoleMemberMain:     "Liabilities:Members:{person}:Main",
	RoleMemberValidity: "Liabilities:Members:{person}:Validity",
	RoleLoansMain:      "Assets:Club:Loans:Main",
	RoleLoansValidity:  "Assets:Club:Loans:Validity",
	RoleFines:          "Income:Club:Fines",
	RoleInterest:       "Income:Club:Interest",
	RolePenalties:      "Income:Club:Penalties",
}

// AccountMappingConfig represents the account mapping file.
type AccountMappingConfig struct {
	Accounts map[string]string `yaml:"accounts"`
}

// Mapper maps account roles to Beancount account names.
type Mapper struct {
	accounts map[string]string
}

// NewDefaultMapper returns a Mapper with the built-in account names.
func NewDefaultMapper() *Mapper {
	m := &Mapper{accounts: make(map[string]string, len(defaultAccounts))}
	for role, account := range defaultAccounts {
		m.accounts[role] = account
	}
	return m
}

// NewMapper creates a new Mapper from a YAML configuration file. Roles the
// file leaves out keep their default account.
func NewMapper(configPath string) (*Mapper, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config AccountMappingConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	mapper := NewDefaultMapper()
	for role, account := range config.Accounts {
		if _, ok := defaultAccounts[role]; !ok {
			return nil, fmt.Errorf("unknown account role %q", role)
		}
		if account == "" {
			return nil, fmt.Errorf("account for role %q must not be empty", role)
		}
		mapper.accounts[role] = account
	}

	return mapper, nil
}

// Account returns the Beancount account for a role. personID fills the
// {person} placeholder of member accounts.
func (m *Mapper) Account(role string, personID int64) string {
	account := m.accounts[role]
	if strings.Contains(account, personPlaceholder) {
		account = strings.ReplaceAll(account, personPlaceholder, "P"+strconv.FormatInt(personID, 10))
	}
	return account
}

// GetAllMappings returns all role to account mappings.
func (m *Mapper) GetAllMappings() map[string]string {
	result := make(map[string]string, len(m.accounts))
	for k, v := range m.accounts {
		result[k] = v
	}
	return result
}
