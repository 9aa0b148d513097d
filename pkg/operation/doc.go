/*
Package operation implements the patch session: the unit of work that turns a
session's proposed fixes into an updated document.

	+-------------+
	|  Fix list   |
	|  Document   |
	+------+------+
	       |
	+------+------+
	|   Patcher   |
	| (Locate +   |
	|  Apply)     |
	+------+------+
	       |
	+------+------+
	|  Changelog  |
	+------+------+
	       |
	+------+------+------+
	|      |             |
	Persist Render   Invalidate
	                (cache, cdn)

🎯 Purpose:
- Loads the session's fix list and the target document from the store
- Applies the caller-selected fixes in list order
- Records one changelog entry for the applied fixes
- Persists the document and triggers the downstream side effects

🔄 Flow:
1. Resolve the fix list and derive the document key from its URL
2. Load the document and select the requested fixes
3. Locate and substitute each fix against the working copy
4. Compose the changelog entry
5. Write the document (conditionally, keyed on the checksum read in step 2)
6. Render HTML (best-effort)
7. Invalidate the analysis cache and the CDN concurrently and wait for both

⚠️ Failure semantics:
- Anything before the write fails the session and leaves the store untouched
- A failed write returns ErrPersist and nothing downstream runs
- When no fix applies only the analysis cache is invalidated
- Render and analysis cache failures become warnings
- A CDN failure is reported but the session still succeeds

🔍 Example:

	op, err := operation.New(operation.Options{
		Config:      cfg,
		Store:       st,
		Invalidator: inv,
	})
	if err != nil {
		return err
	}
	resp := op.Handle(ctx, operation.Request{SessionID: "abc", FixIDs: []string{"fix-1"}})
*/
package operation
