package schema

// structuralQuery replaces an alternation of file names when a filename-style
// search is folded into a content search.
const structuralQuery = "package |func |class |def "

// Builtin returns the default tool tables. The search, git, file, summary and
// refactor tables mirror the tools the agent ships with; explain, web_search
// and fetch back the fallback rules.
func Builtin() []Entry {
	return []Entry{
		{
			Tool:        "search",
			Description: "Search code in the workspace for text, patterns, definitions or imports.",
			Primary:     "query",
			Params: []Param{
				{
					Name:        "query",
					Type:        TypeString,
					Description: "Text, regex, or symbol name to search for",
					Required:    true,
					Aliases:     []string{"pattern", "search_term", "term", "q", "keyword", "text"},
				},
				{
					Name:        "search_type",
					Type:        TypeString,
					Description: "Kind of search",
					Default:     "text",
					Aliases:     []string{"type", "mode", "kind"},
					Enum:        []string{"text", "regex", "function", "class", "import"},
					Synonyms: map[string]Synonym{
						"filename": {Value: "text", Derive: []Derivation{
							{Param: "file_pattern", Template: "*{query}*"},
							{Param: "query", Template: structuralQuery, Overwrite: true, OnlyIfAlternation: true},
						}},
						"file":     {Value: "text", Derive: []Derivation{{Param: "file_pattern", Template: "*{query}*"}}},
						"path":     {Value: "text", Derive: []Derivation{{Param: "file_pattern", Template: "*{query}*"}}},
						"pattern":  {Value: "regex"},
						"regexp":   {Value: "regex"},
						"code":     {Value: "text"},
						"content":  {Value: "text"},
						"literal":  {Value: "text"},
						"func":     {Value: "function"},
						"method":   {Value: "function"},
						"def":      {Value: "function"},
						"struct":   {Value: "class"},
						"type":     {Value: "class"},
						"imports":  {Value: "import"},
						"package":  {Value: "import"},
						"symbol":   {Value: "function"},
						"fulltext": {Value: "text"},
					},
				},
				{
					Name:        "file_pattern",
					Type:        TypeString,
					Description: "Glob restricting which files are searched",
					Default:     "*",
					Aliases:     []string{"glob", "include", "files", "file_glob"},
				},
				{
					Name:        "max_results",
					Type:        TypeInteger,
					Description: "Maximum number of matches",
					Default:     50,
					Aliases:     []string{"limit", "max", "max_matches"},
				},
				{
					Name:        "context_lines",
					Type:        TypeInteger,
					Description: "Lines of context around each match",
					Default:     3,
					Aliases:     []string{"context"},
				},
			},
		},
		{
			Tool:        "git",
			Description: "Version control operations: status, diff, add, commit, branch, log, push, pull.",
			Params: []Param{
				{
					Name:     "action",
					Type:     TypeString,
					Required: true,
					Default:  "status",
					Aliases:  []string{"command", "operation", "cmd", "subcommand"},
					Enum:     []string{"status", "diff", "add", "commit", "branch", "log", "push", "pull"},
					Synonyms: map[string]Synonym{
						"history":  {Value: "log"},
						"commits":  {Value: "log"},
						"show":     {Value: "log"},
						"changes":  {Value: "diff"},
						"compare":  {Value: "diff"},
						"stage":    {Value: "add"},
						"branches": {Value: "branch"},
						"checkout": {Value: "branch"},
						"switch":   {Value: "branch"},
						"save":     {Value: "commit"},
						"upload":   {Value: "push"},
						"fetch":    {Value: "pull"},
						"sync":     {Value: "pull"},
						"state":    {Value: "status"},
						"info":     {Value: "status"},
					},
				},
				{Name: "files", Type: TypeString, Description: "Space separated paths", Aliases: []string{"paths", "file", "path"}},
				{Name: "message", Type: TypeString, Description: "Commit message", Aliases: []string{"msg", "commit_message", "m"}},
				{Name: "branch_name", Type: TypeString, Description: "Branch to create or switch to", Aliases: []string{"branch", "name"}},
				{Name: "remote", Type: TypeString, Description: "Remote name", Default: "origin"},
			},
		},
		{
			Tool:        "file",
			Description: "Read, write and list files inside the workspace.",
			Primary:     "path",
			Params: []Param{
				{
					Name:     "action",
					Type:     TypeString,
					Required: true,
					Default:  "read",
					Aliases:  []string{"operation", "op", "command", "mode"},
					Enum:     []string{"read", "read_multiple", "write", "list", "exists", "delete"},
					Synonyms: map[string]Synonym{
						"list_structure": {Value: "list"},
						"list_directory": {Value: "list"},
						"list_files":     {Value: "list"},
						"ls":             {Value: "list"},
						"tree":           {Value: "list"},
						"cat":            {Value: "read"},
						"show":           {Value: "read"},
						"view":           {Value: "read"},
						"open":           {Value: "read"},
						"read_file":      {Value: "read"},
						"read_files":     {Value: "read_multiple"},
						"create":         {Value: "write"},
						"edit":           {Value: "write"},
						"save":           {Value: "write"},
						"write_file":     {Value: "write"},
						"remove":         {Value: "delete"},
						"rm":             {Value: "delete"},
						"check":          {Value: "exists"},
					},
				},
				{Name: "path", Type: TypeString, Description: "File or directory path", Aliases: []string{"file", "filename", "file_path", "filepath", "directory", "dir"}},
				{Name: "paths", Type: TypeArray, Description: "Paths for read_multiple", Aliases: []string{"files", "file_paths"}},
				{Name: "max_files", Type: TypeInteger, Description: "Limit for read_multiple", Default: 5},
				{Name: "content", Type: TypeString, Description: "Content to write", Aliases: []string{"text", "data", "body"}},
				{Name: "encoding", Type: TypeString, Description: "Text encoding", Default: "utf-8"},
			},
		},
		{
			Tool:        "summary",
			Description: "Summarize what earlier steps collected.",
			Primary:     "task_description",
			Params: []Param{
				{Name: "task_description", Type: TypeString, Required: true, Aliases: []string{"task", "request", "description"}},
				{Name: "collected_data", Type: TypeAny, Aliases: []string{"data", "results"}},
				{Name: "context", Type: TypeString},
				{
					Name:    "focus",
					Type:    TypeString,
					Default: "overview",
					Aliases: []string{"topic"},
					Enum:    []string{"overview", "architecture", "functionality", "issues"},
					Synonyms: map[string]Synonym{
						"general":   {Value: "overview"},
						"summary":   {Value: "overview"},
						"structure": {Value: "architecture"},
						"design":    {Value: "architecture"},
						"features":  {Value: "functionality"},
						"bugs":      {Value: "issues"},
						"problems":  {Value: "issues"},
					},
				},
			},
		},
		{
			Tool:        "refactor",
			Description: "Structural code edits: rename, extract_function, inline, move_function, add_docstring.",
			Params: []Param{
				{
					Name:     "action",
					Type:     TypeString,
					Required: true,
					Aliases:  []string{"operation", "op", "refactoring"},
					Enum:     []string{"rename", "extract_function", "inline", "move_function", "add_docstring"},
					Synonyms: map[string]Synonym{
						"extract":        {Value: "extract_function"},
						"extract_method": {Value: "extract_function"},
						"move":           {Value: "move_function"},
						"document":       {Value: "add_docstring"},
						"docstring":      {Value: "add_docstring"},
						"rename_symbol":  {Value: "rename"},
					},
				},
				{Name: "file_path", Type: TypeString, Required: true, Aliases: []string{"path", "file", "filename"}},
				{Name: "target", Type: TypeString, Aliases: []string{"old_name", "function_name", "symbol"}},
				{Name: "new_name", Type: TypeString, Aliases: []string{"rename_to", "to"}},
				{Name: "start_line", Type: TypeInteger, Aliases: []string{"start", "from_line"}},
				{Name: "end_line", Type: TypeInteger, Aliases: []string{"end", "to_line"}},
				{Name: "content", Type: TypeString, Aliases: []string{"code", "docstring_text"}},
			},
		},
		{
			Tool:        "explain",
			Description: "Answer directly without touching the workspace.",
			Primary:     "question",
			Params: []Param{
				{Name: "question", Type: TypeString, Required: true, Aliases: []string{"query", "prompt", "request", "text", "topic"}},
				{Name: "context", Type: TypeString},
			},
		},
		{
			Tool:        "web_search",
			Description: "Search the web for current information.",
			Primary:     "query",
			Params: []Param{
				{Name: "query", Type: TypeString, Required: true, Aliases: []string{"q", "search_term", "term", "keywords"}},
			},
		},
		{
			Tool:        "fetch",
			Description: "Fetch a web page and extract its readable text.",
			Primary:     "url",
			Params: []Param{
				{Name: "url", Type: TypeString, Required: true, Aliases: []string{"link", "href", "page", "uri", "address"}},
			},
		},
	}
}

// BuiltinByTool indexes Builtin by tool name.
func BuiltinByTool() map[string]Entry {
	out := make(map[string]Entry)
	for _, e := range Builtin() {
		out[normalizeTool(e.Tool)] = e
	}
	return out
}
