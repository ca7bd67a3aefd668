package register

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
	"github.com/nyaruka/phonenumbers"
)

// ChannelType identifies how we can reach a user
type ChannelType = string

const (
	// ChannelEmail delivers over email
	ChannelEmail ChannelType = "EMAIL"
	// ChannelSMS delivers over SMS to a phone number
	ChannelSMS ChannelType = "SMS"
)

// IsValidChannelType checks the type is one of the known channels
func IsValidChannelType(t ChannelType) bool {
	switch t {
	case ChannelEmail, ChannelSMS:
		return true
	default:
		return false
	}
}

// ParseChannelType safely parses a string into a ChannelType
func ParseChannelType(raw string) (ChannelType, bool) {
	t := ChannelType(raw)
	return t, IsValidChannelType(t)
}

// Channel is a typed communication address. It is embedded into User with a
// column prefix so preferred and secondary channels share one shape.
type Channel struct {
	Type    ChannelType `bun:"type" json:"type,omitempty"`
	Address string      `bun:"address" json:"address,omitempty"`
}

// IsZero reports whether the channel carries no address
func (c Channel) IsZero() bool {
	return c.Type == "" && c.Address == ""
}

// Equals compares type and address
func (c Channel) Equals(other Channel) bool {
	return c.Type == other.Type && c.Address == other.Address
}

// Validate will run validation rules for the channel
func (c Channel) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(
			&c.Type,
			validation.Required,
			validation.In(ChannelEmail, ChannelSMS),
		),
		validation.Field(
			&c.Address,
			validation.Required,
			validation.By(validateChannelAddress(c.Type)),
		),
	)
}

func validateChannelAddress(channelType ChannelType) validation.RuleFunc {
	return func(value any) error {
		address, _ := value.(string)
		switch channelType {
		case ChannelSMS:
			return validatePhoneNumber(address)
		default:
			return validation.Validate(address, is.Email)
		}
	}
}

func validatePhoneNumber(address string) error {
	num, err := phonenumbers.Parse(address, "US")
	if err != nil {
		return err
	}
	if !phonenumbers.IsValidNumber(num) {
		return errors.New("must be a valid phone number", errors.CategoryValidation)
	}
	return nil
}
