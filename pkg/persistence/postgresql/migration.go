package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- One row per whole-table document (keywords, macros)
			CREATE TABLE documents (
				name VARCHAR(64) PRIMARY KEY,
				body JSONB NOT NULL DEFAULT '{}',
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
			);
		`,
	}
}
