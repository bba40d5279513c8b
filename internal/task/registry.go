package task

// Spec describes one task variant for the classifier prompt: its name, the
// natural-language purpose the oracle uses to select it, and a literal
// example payload showing the expected JSON shape.
type Spec struct {
	Name    Name
	Purpose string
	Example Args
}

// Registry returns the ordered set of task variants embedded into every
// classification prompt. The two fallback variants (error,
// missingInformation) are stated separately in the prompt with their trigger
// conditions, so they are not listed here.
func Registry() []Spec {
	return []Spec{
		{
			Name:    NameSend,
			Purpose: "Send a token to another user, the token is resolved via the alias. Message is optional (empty string).",
			Example: SendArgs{
				Name:    NameSend,
				Alias:   "alias1",
				Users:   []string{"@JohnDoe"},
				Amount:  100,
				Message: "{any message the user would like to include goes here}",
			},
		},
		{
			Name:    NameAddress,
			Purpose: "Reveal the user's address for the communities they specify (these will go in the alias field). If they are not specific about which community, put all the community aliases in the alias field.",
			Example: AddressArgs{Name: NameAddress, Alias: []string{"alias1", "alias2"}},
		},
		{
			Name:    NameBalance,
			Purpose: "Reveal the user's balance for the communities they specify (these will go in the alias field). If they are not specific about which community, put all the community aliases in the alias field.",
			Example: BalanceArgs{Name: NameBalance, Alias: []string{"alias1", "alias2"}},
		},
		{
			Name:    NameShareAddress,
			Purpose: "Share the user's address for the community they have specified (this will go in the alias field).",
			Example: ShareAddressArgs{Name: NameShareAddress, Alias: "alias1"},
		},
		{
			Name:    NameShareBalance,
			Purpose: "Share the user's balance for the community they have specified (this will go in the alias field). Try to determine which community alias the user is referring to from the ones provided below.",
			Example: ShareBalanceArgs{Name: NameShareBalance, Alias: "alias1"},
		},
		{
			Name:    NameMint,
			Purpose: "Mint a token to another user, the token is resolved via the alias. Message is optional (empty string).",
			Example: MintArgs{
				Name:    NameMint,
				Alias:   "alias1",
				Users:   []string{"@JohnDoe"},
				Amount:  100,
				Message: "{any message the user would like to include goes here}",
			},
		},
		{
			Name:    NameBurn,
			Purpose: "Burn a token from another account, the token is resolved via the alias. Message is optional (empty string).",
			Example: BurnArgs{
				Name:    NameBurn,
				Alias:   "alias1",
				User:    "@JohnDoe",
				Amount:  100,
				Message: "{any message the user would like to include goes here}",
			},
		},
		{
			Name:    NameHelp,
			Purpose: "If the user is trying to ask for help with commands or trying to list the available commands.",
			Example: HelpArgs{Name: NameHelp},
		},
	}
}
