// Package task defines the closed set of chat tasks the bot can perform and
// the classifier that maps free-form text onto them.
//
// The vocabulary of tasks is closed and small; the LLM oracle is used only
// for classification and slot-filling, never for execution. A
// misclassification can at worst select the wrong (but still schema-valid)
// operation, which the confirmation gate puts in front of the user before
// anything irreversible happens.
package task

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Name discriminates the task variants.
type Name string

const (
	NameSend               Name = "send"
	NameAddress            Name = "address"
	NameBalance            Name = "balance"
	NameShareAddress       Name = "shareAddress"
	NameShareBalance       Name = "shareBalance"
	NameMint               Name = "mint"
	NameBurn               Name = "burn"
	NameHelp               Name = "help"
	NameError              Name = "error"
	NameMissingInformation Name = "missingInformation"
)

// Args is the tagged union of task payloads. Exactly one variant is produced
// per classification call; the discriminant always matches the payload shape.
type Args interface {
	TaskName() Name
}

// SendArgs transfers tokens to one or more recipients.
type SendArgs struct {
	Name    Name     `json:"name"`
	Alias   string   `json:"alias"`
	Users   []string `json:"users"`
	Amount  float64  `json:"amount"`
	Message string   `json:"message"`
}

func (SendArgs) TaskName() Name { return NameSend }

// Validate performs the field-level sanity checks the classifier deliberately
// leaves to callers.
func (a SendArgs) Validate() error {
	if len(a.Users) == 0 {
		return errors.New("no recipients specified")
	}
	if a.Amount <= 0 {
		return fmt.Errorf("amount must be positive, got %v", a.Amount)
	}
	return nil
}

// MintArgs mints tokens to one or more recipients.
type MintArgs struct {
	Name    Name     `json:"name"`
	Alias   string   `json:"alias"`
	Users   []string `json:"users"`
	Amount  float64  `json:"amount"`
	Message string   `json:"message"`
}

func (MintArgs) TaskName() Name { return NameMint }

func (a MintArgs) Validate() error {
	if len(a.Users) == 0 {
		return errors.New("no recipients specified")
	}
	if a.Amount <= 0 {
		return fmt.Errorf("amount must be positive, got %v", a.Amount)
	}
	return nil
}

// BurnArgs burns tokens from a single account.
type BurnArgs struct {
	Name    Name    `json:"name"`
	Alias   string  `json:"alias"`
	User    string  `json:"user"`
	Amount  float64 `json:"amount"`
	Message string  `json:"message"`
}

func (BurnArgs) TaskName() Name { return NameBurn }

func (a BurnArgs) Validate() error {
	if a.User == "" {
		return errors.New("no account specified")
	}
	if a.Amount <= 0 {
		return fmt.Errorf("amount must be positive, got %v", a.Amount)
	}
	return nil
}

// AddressArgs reveals the requester's address for a set of communities.
type AddressArgs struct {
	Name  Name     `json:"name"`
	Alias []string `json:"alias"`
}

func (AddressArgs) TaskName() Name { return NameAddress }

// BalanceArgs reveals the requester's balance for a set of communities.
type BalanceArgs struct {
	Name  Name     `json:"name"`
	Alias []string `json:"alias"`
}

func (BalanceArgs) TaskName() Name { return NameBalance }

// ShareAddressArgs shares the requester's address publicly for one community.
type ShareAddressArgs struct {
	Name  Name   `json:"name"`
	Alias string `json:"alias"`
}

func (ShareAddressArgs) TaskName() Name { return NameShareAddress }

// ShareBalanceArgs shares the requester's balance publicly for one community.
type ShareBalanceArgs struct {
	Name  Name   `json:"name"`
	Alias string `json:"alias"`
}

func (ShareBalanceArgs) TaskName() Name { return NameShareBalance }

// HelpArgs asks for the command overview.
type HelpArgs struct {
	Name Name `json:"name"`
}

func (HelpArgs) TaskName() Name { return NameHelp }

// ErrorArgs is the fallback variant when the oracle cannot determine a task.
type ErrorArgs struct {
	Name  Name   `json:"name"`
	Error string `json:"error"`
}

func (ErrorArgs) TaskName() Name { return NameError }

// MissingInformationArgs is the fallback variant when a task was recognised
// but required slots are absent.
type MissingInformationArgs struct {
	Name               Name   `json:"name"`
	MissingInformation string `json:"missingInformation"`
}

func (MissingInformationArgs) TaskName() Name { return NameMissingInformation }

// ErrOracleContract marks a programming-contract violation by the completion
// oracle: empty output, unparseable JSON, or an array where an object is
// required. It terminates the command rather than degrading to an error task.
var ErrOracleContract = errors.New("task: oracle returned output violating the response contract")

// Decode parses an oracle response body into the tagged union. Only the
// discriminant is used to select the shape; field-level sanity checks (amount
// positivity, known aliases) are the caller's responsibility.
func Decode(data []byte) (Args, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrOracleContract)
	}
	if trimmed[0] == '[' {
		return nil, fmt.Errorf("%w: array instead of object", ErrOracleContract)
	}

	var head struct {
		Name Name `json:"name"`
	}
	if err := json.Unmarshal(trimmed, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOracleContract, err)
	}

	decodeInto := func(v Args) (Args, error) {
		if err := json.Unmarshal(trimmed, v); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOracleContract, err)
		}
		return v, nil
	}

	switch head.Name {
	case NameSend:
		return decodeInto(&SendArgs{})
	case NameMint:
		return decodeInto(&MintArgs{})
	case NameBurn:
		return decodeInto(&BurnArgs{})
	case NameAddress:
		return decodeInto(&AddressArgs{})
	case NameBalance:
		return decodeInto(&BalanceArgs{})
	case NameShareAddress:
		return decodeInto(&ShareAddressArgs{})
	case NameShareBalance:
		return decodeInto(&ShareBalanceArgs{})
	case NameHelp:
		return decodeInto(&HelpArgs{})
	case NameError:
		return decodeInto(&ErrorArgs{})
	case NameMissingInformation:
		return decodeInto(&MissingInformationArgs{})
	default:
		return nil, fmt.Errorf("%w: unknown task name %q", ErrOracleContract, head.Name)
	}
}
