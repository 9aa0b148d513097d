/*
Package config manages configuration parsing and validation for docpatch.

	            +-------------+
	            |   Config    |
	            | (Settings)  |
	            +------+------+
	                   |
	      +-----------+-----------+-----------+
	      |           |                       |
	+-----+-----+ +---+----+            +----+----+
	|   YAML    | |  JSON  |            |   HCL   |
	+-----------+ +--------+            +---------+

🎯 Purpose:
- Selects the document store backend (fs, sqlite, github, memory)
- Exposes the fuzzy locator heuristics as tunables
- Names the per-session keys (fix list, cached analysis artifacts)
- Configures cache invalidation and the HTTP transport

🔄 Flow:
1. Reads configuration from file
2. Parses format-specific syntax (by extension)
3. Validates and fills defaults
4. Hands the validated config to the operation, store and cdn packages

🔍 Example:

	cfg, err := config.LoadConfig(ctx, ".docpatch.yaml")
	if err != nil {
		return err
	}
	key := cfg.FixListKey("session-123") // sessions/session-123/fixes.json
*/
package config
