package models

// KeywordStat is the usage statistic of one prompt token.
type KeywordStat struct {
	Text     string `json:"text"`
	Count    int    `json:"count"`
	LastUsed int64  `json:"lastUsed"`
}

// KeywordTable is the frequency document keyed by exact token text.
type KeywordTable map[string]KeywordStat

// Clone returns a shallow copy; KeywordStat is a value type so this is a full copy.
func (t KeywordTable) Clone() KeywordTable {
	out := make(KeywordTable, len(t))
	for k, v := range t {
		out[k] = v
	}

	return out
}

// MacroTable maps a macro alias (without the leading @) to its expansion.
type MacroTable map[string]string

// Clone returns a copy of the macro table.
func (t MacroTable) Clone() MacroTable {
	out := make(MacroTable, len(t))
	for k, v := range t {
		out[k] = v
	}

	return out
}
