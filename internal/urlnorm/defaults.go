package urlnorm

// DefaultDenyRules lists hosts that never yield topical pages: archives,
// social networks, and Wikimedia projects other than the English and German ones.
func DefaultDenyRules() []DenyRule {
	return []DenyRule{
		{Pattern: `\.wiki\w*\.org$`, Unless: `^(en|de)(\.m)?\.wiki`},
		{Pattern: `web\.archive\.org`},
		{Pattern: `facebook\.com`},
		{Pattern: `twitter\.com`},
		{Pattern: `youtube\.com`},
		{Pattern: `instagram\.com`},
		{Pattern: `linkedin\.com`},
		{Pattern: `reddit\.com`},
	}
}
