package registry

import "time"

// DefaultRole is assigned to profiles registered without a role tag.
const DefaultRole = "user"

// Profile represents a registered account holder.
type Profile struct {
	FullName         string     `json:"fullName"`
	Country          string     `json:"country"`
	DateOfBirth      string     `json:"dateOfBirth"`
	PhoneCountryCode string     `json:"phoneCountryCode"`
	Phone            string     `json:"phone"`
	Email            string     `json:"email"`
	UUID             string     `json:"uuid"`
	ShortUUID        string     `json:"shortUuid"`
	WalletAddress    string     `json:"walletAddress"`
	PasswordHash     string     `json:"passwordHash,omitempty"`
	Network          string     `json:"network"`
	ChainID          int64      `json:"chainId"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        *time.Time `json:"updatedAt,omitempty"`
	Role             string     `json:"role"`
}

// ID is the compact identifier the profile is stored under.
func (p Profile) ID() string { return p.ShortUUID }

// Patch lists the mutable profile fields. Nil fields are left untouched.
type Patch struct {
	FullName         *string `json:"fullName,omitempty"`
	Country          *string `json:"country,omitempty"`
	DateOfBirth      *string `json:"dateOfBirth,omitempty"`
	PhoneCountryCode *string `json:"phoneCountryCode,omitempty"`
	Phone            *string `json:"phone,omitempty"`
	Email            *string `json:"email,omitempty"`
	PasswordHash     *string `json:"passwordHash,omitempty"`
	Network          *string `json:"network,omitempty"`
	ChainID          *int64  `json:"chainId,omitempty"`
	Role             *string `json:"role,omitempty"`
}

func (p Patch) apply(profile *Profile) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&profile.FullName, p.FullName)
	set(&profile.Country, p.Country)
	set(&profile.DateOfBirth, p.DateOfBirth)
	set(&profile.PhoneCountryCode, p.PhoneCountryCode)
	set(&profile.Phone, p.Phone)
	set(&profile.Email, p.Email)
	set(&profile.PasswordHash, p.PasswordHash)
	set(&profile.Network, p.Network)
	set(&profile.Role, p.Role)
	if p.ChainID != nil {
		profile.ChainID = *p.ChainID
	}
}

// Redacted returns a copy without the password digest, for display.
func (p Profile) Redacted() Profile {
	p.PasswordHash = ""
	return p
}
