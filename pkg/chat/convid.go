package chat

// ConversationID derives the canonical identifier for the conversation
// between two identities. It is commutative: ConversationID(a, b) ==
// ConversationID(b, a). The sorted join keeps the id stable across
// restarts and collision-free for distinct unordered pairs, since
// identities never contain the separator.
func ConversationID(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + "_" + b
}
