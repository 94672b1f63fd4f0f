package wikid

import (
	"strings"

	"github.com/dustin/go-humanize"
)

const (
	toolGetPage            = "confluence_get_page"
	toolEditPage           = "confluence_edit_page"
	toolPushPage           = "confluence_push_page"
	toolFindReplace        = "confluence_find_replace"
	toolCreatePage         = "confluence_create_page"
	toolExtractText        = "confluence_extract_text"
	toolRegexReplace       = "confluence_regex_replace"
	toolReplaceMention     = "confluence_replace_mention"
	toolUpdateTask         = "confluence_update_task"
	toolUpdateTableCell    = "confluence_update_table_cell"
	toolInsertTableRow     = "confluence_insert_table_row"
	toolDeleteTableRow     = "confluence_delete_table_row"
	toolAddLink            = "confluence_add_link"
	toolSearchPages        = "confluence_search_pages"
	toolListPages          = "confluence_list_pages"
	toolGetChildPages      = "confluence_get_child_pages"
	toolGetAncestors       = "confluence_get_ancestors"
	toolListSpaces         = "confluence_list_spaces"
	toolGetLabels          = "confluence_get_labels"
	toolAddLabels          = "confluence_add_labels"
	toolRemoveLabel        = "confluence_remove_label"
	toolAddComment         = "confluence_add_comment"
	toolListComments       = "confluence_list_comments"
	toolListInlineComments = "confluence_list_inline_comments"
	toolAddInlineComment   = "confluence_add_inline_comment"
	toolGetPageProperties  = "confluence_get_page_properties"
	toolSetPageProperty    = "confluence_set_page_property"
	toolSetRestrictions    = "confluence_set_restrictions"
	toolWatchPage          = "confluence_watch_page"
	toolListVersions       = "confluence_list_versions"
	toolCompareVersions    = "confluence_compare_versions"
	toolRevertPage         = "confluence_revert_page"
	toolGetContributors    = "confluence_get_contributors"
	toolListAttachments    = "confluence_list_attachments"
	toolUploadAttachment   = "confluence_upload_attachment"
	toolDownloadAttachment = "confluence_download_attachment"
	toolDeleteAttachment   = "confluence_delete_attachment"
	toolArchivePage        = "confluence_archive_page"
	toolMovePage           = "confluence_move_page"
	toolCopyPage           = "confluence_copy_page"
	toolGetUser            = "confluence_get_user"
	toolListCache          = "confluence_list_cache"
	toolClearCache         = "confluence_clear_cache"
)

var wikidToolNames = []string{
	toolGetPage,
	toolEditPage,
	toolPushPage,
	toolFindReplace,
	toolCreatePage,
	toolExtractText,
	toolRegexReplace,
	toolReplaceMention,
	toolUpdateTask,
	toolUpdateTableCell,
	toolInsertTableRow,
	toolDeleteTableRow,
	toolAddLink,
	toolSearchPages,
	toolListPages,
	toolGetChildPages,
	toolGetAncestors,
	toolListSpaces,
	toolGetLabels,
	toolAddLabels,
	toolRemoveLabel,
	toolAddComment,
	toolListComments,
	toolListInlineComments,
	toolAddInlineComment,
	toolGetPageProperties,
	toolSetPageProperty,
	toolSetRestrictions,
	toolWatchPage,
	toolListVersions,
	toolCompareVersions,
	toolRevertPage,
	toolGetContributors,
	toolListAttachments,
	toolUploadAttachment,
	toolDownloadAttachment,
	toolDeleteAttachment,
	toolArchivePage,
	toolMovePage,
	toolCopyPage,
	toolGetUser,
	toolListCache,
	toolClearCache,
}

// toolContract is the fixed frame every tool description renders through so
// agents see the same sections in the same order on all tools.
type toolContract struct {
	Top      []string
	Purpose  string
	UseWhen  string
	Requires string
	Effects  string
	Next     string
}

func formatToolDescription(spec toolContract) string {
	lines := make([]string, 0, len(spec.Top)+5)
	for _, line := range spec.Top {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	lines = append(lines, []string{
		"Purpose: " + spec.Purpose,
		"Use when: " + spec.UseWhen,
		"Requires: " + spec.Requires,
		"Effects: " + spec.Effects,
		"Next: " + spec.Next,
	}...)
	return strings.Join(lines, "\n")
}

const (
	cacheWorkflowLine = "WORKFLOW: confluence_get_page caches a snapshot, confluence_edit_page mutates the snapshot, confluence_push_page publishes it."
	pageRefLine       = "Page references accept a numeric ID, a full page URL, or a short /wiki/x/ link."
	previewLine       = "DESTRUCTIVE: Runs in preview mode by default. Show the preview to the user and get explicit approval before calling again with confirm=true."
	pushSafetyLine    = "Pushes re-read the remote version before writing and retry once on a concurrent edit; a second conflict is surfaced."
)

func buildToolDescriptions(cfg Config) map[string]string {
	uploadCap := cfg.MaxUploadBytes
	if uploadCap <= 0 {
		uploadCap = DefaultMaxUploadBytes
	}
	uploadCapText := humanize.IBytes(uint64(uploadCap))

	return map[string]string{
		toolGetPage: formatToolDescription(toolContract{
			Top:      []string{cacheWorkflowLine, pageRefLine},
			Purpose:  "Fetch a Confluence page and cache it locally for editing.",
			UseWhen:  "You want to read a page, or you are starting an edit session on it.",
			Requires: "`page_id` is required.",
			Effects:  "Stores the page title, version, and ADF body in the snapshot cache and reports the cache location.",
			Next:     "call `confluence_edit_page` to change the snapshot, then `confluence_push_page` to publish.",
		}),
		toolEditPage: formatToolDescription(toolContract{
			Top:      []string{cacheWorkflowLine},
			Purpose:  "Find and replace text in the cached copy of a page.",
			UseWhen:  "A snapshot exists (from confluence_get_page) and you want to change its text before publishing.",
			Requires: "`page_id`, `find`, and `replace` are required. `replace_all` defaults to true; set it false to replace only the first occurrence.",
			Effects:  "Rewrites matching text leaves in the cached snapshot only; Confluence is not contacted.",
			Next:     "repeat for further edits, then call `confluence_push_page`.",
		}),
		toolPushPage: formatToolDescription(toolContract{
			Top:      []string{cacheWorkflowLine, pushSafetyLine},
			Purpose:  "Publish the cached snapshot of a page to Confluence.",
			UseWhen:  "You finished editing the snapshot and want the changes live.",
			Requires: "`page_id` is required and must have a cached snapshot. `version_message` optionally describes the change.",
			Effects:  "Writes the snapshot title and body as the next page version.",
			Next:     "call `confluence_get_page` again before another edit session.",
		}),
		toolFindReplace: formatToolDescription(toolContract{
			Top:      []string{pageRefLine, pushSafetyLine},
			Purpose:  "Fetch a page, replace text, and push the result in one step.",
			UseWhen:  "You want a quick text substitution without a separate edit session.",
			Requires: "`page_id`, `find`, and `replace` are required. `replace_all` defaults to true. `version_message` is optional.",
			Effects:  "Publishes a new page version when the text is found; only text leaves change, never document structure.",
			Next:     "call `confluence_extract_text` to verify the result if needed.",
		}),
		toolCreatePage: formatToolDescription(toolContract{
			Purpose:  "Create a new Confluence page with ADF content.",
			UseWhen:  "You need a fresh page rather than an edit to an existing one.",
			Requires: "`space_id`, `title`, and `adf_body` (a full ADF document as a JSON string, e.g. {\"type\": \"doc\", \"version\": 1, \"content\": [...]}) are required. `parent_id` optionally nests the page.",
			Effects:  "Creates the page and reports its ID and version.",
			Next:     "call `confluence_get_page` with the new ID to start editing it.",
		}),
		toolExtractText: formatToolDescription(toolContract{
			Top:      []string{pageRefLine},
			Purpose:  "Extract readable plain text from a page.",
			UseWhen:  "You want page content for reading or analysis rather than editing.",
			Requires: "`page_id` is required.",
			Effects:  "Fetches the current page version; the cache is not consulted or written.",
			Next:     "call `confluence_get_page` if you decide to edit.",
		}),
		toolRegexReplace: formatToolDescription(toolContract{
			Top:      []string{pageRefLine, pushSafetyLine},
			Purpose:  "Find and replace text across a page using a regular expression.",
			UseWhen:  "The substitution needs pattern matching or capture groups ($1 style backreferences).",
			Requires: "`page_id`, `pattern` (Go regexp syntax), and `replacement` are required. `version_message` is optional.",
			Effects:  "Applies the pattern to every text leaf and publishes a new version when anything matched.",
			Next:     "call `confluence_extract_text` to verify the result if needed.",
		}),
		toolReplaceMention: formatToolDescription(toolContract{
			Top:      []string{pageRefLine, pushSafetyLine},
			Purpose:  "Replace all @mentions of one user with another on a page.",
			UseWhen:  "Ownership or responsibility moved from one person to another.",
			Requires: "`page_id`, `find_user` (partial match on mention text), and `replace_user` (name searched in Confluence) are required.",
			Effects:  "Swaps matching mention nodes to the resolved user and publishes a new version. Ambiguous names return a picker list instead of editing.",
			Next:     "re-run with the exact display name if multiple users matched.",
		}),
		toolUpdateTask: formatToolDescription(toolContract{
			Top:      []string{pageRefLine, pushSafetyLine},
			Purpose:  "Toggle a task (checkbox) item on a page.",
			UseWhen:  "A task list on the page needs to reflect done/undone work.",
			Requires: "`page_id`, `task_text` (substring matching the task item), and `state` (\"DONE\" or \"TODO\") are required.",
			Effects:  "Sets the state of every matching task item and publishes a new version.",
			Next:     "call `confluence_extract_text` to review the remaining tasks.",
		}),
		toolUpdateTableCell: formatToolDescription(toolContract{
			Top:      []string{pageRefLine, pushSafetyLine},
			Purpose:  "Update a single table cell on a page.",
			UseWhen:  "One value in a table needs to change.",
			Requires: "`page_id`, `row`, `col` (zero-based), and `value` are required. `table_index` selects the table when the page has several (default 0).",
			Effects:  "Replaces the cell content with a paragraph holding the value and publishes a new version.",
			Next:     "call `confluence_extract_text` to see the updated table.",
		}),
		toolInsertTableRow: formatToolDescription(toolContract{
			Top:      []string{pageRefLine, pushSafetyLine},
			Purpose:  "Insert a row into a table on a page.",
			UseWhen:  "A table needs a new entry.",
			Requires: "`page_id`, `row_index` (zero-based; -1 appends), and `values` (one string per cell) are required. `table_index` defaults to 0.",
			Effects:  "Splices the new row in and publishes a new version.",
			Next:     "call `confluence_update_table_cell` for later corrections.",
		}),
		toolDeleteTableRow: formatToolDescription(toolContract{
			Top:      []string{pageRefLine, pushSafetyLine},
			Purpose:  "Delete a row from a table on a page.",
			UseWhen:  "A table entry is obsolete.",
			Requires: "`page_id` and `row_index` (zero-based) are required. `table_index` defaults to 0.",
			Effects:  "Removes the row, echoes its text, and publishes a new version.",
			Next:     "call `confluence_extract_text` to confirm the table contents.",
		}),
		toolAddLink: formatToolDescription(toolContract{
			Top:      []string{pageRefLine, pushSafetyLine},
			Purpose:  "Add a hyperlink to a page.",
			UseWhen:  "A page should reference an external URL or another document.",
			Requires: "`page_id`, `link_text`, and `url` are required. `after_text` optionally anchors the link inline after existing text; empty appends a new paragraph.",
			Effects:  "Inserts the link and publishes a new version.",
			Next:     "call `confluence_extract_text` to see the link in context.",
		}),
		toolSearchPages: formatToolDescription(toolContract{
			Purpose:  "Search Confluence pages using CQL (Confluence Query Language).",
			UseWhen:  "You need to locate pages by title or content.",
			Requires: "`query` is required; plain text is wrapped into a title/content search, CQL operators (AND, OR, ~, =, IN) pass through. `limit` defaults to 10 (max 50); `cursor` pages through results.",
			Effects:  "Read-only; returns IDs, titles, spaces, and excerpts.",
			Next:     "call `confluence_get_page` with a result ID.",
		}),
		toolListPages: formatToolDescription(toolContract{
			Purpose:  "List pages in a Confluence space.",
			UseWhen:  "You want to browse a space's contents.",
			Requires: "`space_id` is required. `limit` defaults to 25 (max 250); `sort` defaults to \"title\" (also \"-title\", \"created-date\", \"-modified-date\"); `cursor` pages through results.",
			Effects:  "Read-only listing.",
			Next:     "call `confluence_get_page` with a listed ID.",
		}),
		toolGetChildPages: formatToolDescription(toolContract{
			Top:      []string{pageRefLine},
			Purpose:  "List the child pages of a page.",
			UseWhen:  "You are walking the page tree downward.",
			Requires: "`page_id` is required. `limit` defaults to 25 (max 250); `cursor` pages through results.",
			Effects:  "Read-only listing.",
			Next:     "recurse with a child ID, or call `confluence_get_ancestors` to walk upward.",
		}),
		toolGetAncestors: formatToolDescription(toolContract{
			Top:      []string{pageRefLine},
			Purpose:  "Show the ancestor chain of a page from the space root down.",
			UseWhen:  "You need to know where a page sits in the hierarchy.",
			Requires: "`page_id` is required.",
			Effects:  "Read-only breadcrumb.",
			Next:     "call `confluence_get_child_pages` on an ancestor to explore siblings.",
		}),
		toolListSpaces: formatToolDescription(toolContract{
			Purpose:  "List Confluence spaces.",
			UseWhen:  "You need a space ID or an overview of available spaces.",
			Requires: "All inputs optional: `limit` defaults to 25 (max 250), `type` filters \"global\" or \"personal\", `status` defaults to \"current\" (or \"archived\"), `cursor` pages through results.",
			Effects:  "Read-only listing of IDs, names, and keys.",
			Next:     "call `confluence_list_pages` with a space ID.",
		}),
		toolGetLabels: formatToolDescription(toolContract{
			Top:      []string{pageRefLine},
			Purpose:  "List the labels on a page.",
			UseWhen:  "You want to check how a page is tagged.",
			Requires: "`page_id` is required.",
			Effects:  "Read-only.",
			Next:     "call `confluence_add_labels` or `confluence_remove_label` to change tagging.",
		}),
		toolAddLabels: formatToolDescription(toolContract{
			Top:      []string{pageRefLine},
			Purpose:  "Add labels to a page.",
			UseWhen:  "A page should be tagged for discovery or process tracking.",
			Requires: "`page_id` and `labels` (a list of label names) are required.",
			Effects:  "Adds the labels; existing labels are unaffected. Does not create a page version.",
			Next:     "call `confluence_get_labels` to confirm.",
		}),
		toolRemoveLabel: formatToolDescription(toolContract{
			Top:      []string{pageRefLine},
			Purpose:  "Remove a label from a page.",
			UseWhen:  "A tag no longer applies.",
			Requires: "`page_id` and `label` are required.",
			Effects:  "Removes the label; removing an absent label reports that without failing.",
			Next:     "call `confluence_get_labels` to confirm.",
		}),
		toolAddComment: formatToolDescription(toolContract{
			Top:      []string{pageRefLine},
			Purpose:  "Add a footer comment to a page.",
			UseWhen:  "You want to leave feedback at the bottom of a page.",
			Requires: "`page_id` and `body` (plain text) are required. `parent_comment_id` threads the comment as a reply.",
			Effects:  "Creates the comment and reports its ID.",
			Next:     "call `confluence_list_comments` to read the thread.",
		}),
		toolListComments: formatToolDescription(toolContract{
			Top:      []string{pageRefLine},
			Purpose:  "List footer comments on a page.",
			UseWhen:  "You want to read page discussion.",
			Requires: "`page_id` is required. `limit` defaults to 25 (max 100); `cursor` pages through results.",
			Effects:  "Read-only.",
			Next:     "call `confluence_add_comment` to reply.",
		}),
		toolListInlineComments: formatToolDescription(toolContract{
			Top:      []string{pageRefLine},
			Purpose:  "List inline comments anchored to specific text on a page.",
			UseWhen:  "You want annotations in context rather than footer discussion.",
			Requires: "`page_id` is required. `limit` defaults to 25 (max 100); `cursor` pages through results.",
			Effects:  "Read-only; each entry shows the highlighted selection.",
			Next:     "call `confluence_add_inline_comment` to annotate more text.",
		}),
		toolAddInlineComment: formatToolDescription(toolContract{
			Top:      []string{pageRefLine},
			Purpose:  "Add an inline comment anchored to specific text on a page.",
			UseWhen:  "Feedback belongs next to a particular sentence or value.",
			Requires: "`page_id`, `body`, and `text_selection` (the exact text to anchor to) are required. `match_index` picks the Nth occurrence (0-based).",
			Effects:  "Creates the annotation and reports its ID.",
			Next:     "call `confluence_list_inline_comments` to review annotations.",
		}),
		toolGetPageProperties: formatToolDescription(toolContract{
			Top:      []string{pageRefLine},
			Purpose:  "List content properties (key-value metadata) on a page.",
			UseWhen:  "You need machine-readable metadata stored on the page.",
			Requires: "`page_id` is required. `limit` defaults to 25 (max 100).",
			Effects:  "Read-only.",
			Next:     "call `confluence_set_page_property` to write metadata.",
		}),
		toolSetPageProperty: formatToolDescription(toolContract{
			Top:      []string{pageRefLine},
			Purpose:  "Create or update a content property on a page.",
			UseWhen:  "You want to store structured metadata alongside the page.",
			Requires: "`page_id`, `key`, and `value` are required. The value is parsed as JSON when possible ('\"done\"', '{\"score\": 5}'), otherwise stored as a plain string.",
			Effects:  "Creates the property or bumps its version with the new value.",
			Next:     "call `confluence_get_page_properties` to confirm.",
		}),
		toolSetRestrictions: formatToolDescription(toolContract{
			Top:      []string{pageRefLine},
			Purpose:  "Set access restrictions on a page.",
			UseWhen:  "A page should be limited to specific people or groups.",
			Requires: "`page_id` and `operation` (\"read\" or \"update\") are required. `users` lists account IDs and `groups` lists group names; empty lists clear the restriction.",
			Effects:  "Replaces the existing restrictions for that operation.",
			Next:     "verify with the page's restrictions view in Confluence.",
		}),
		toolWatchPage: formatToolDescription(toolContract{
			Top:      []string{pageRefLine},
			Purpose:  "Watch or unwatch a page for the authenticated user.",
			UseWhen:  "You want change notifications for a page, or want them to stop.",
			Requires: "`page_id` is required. `watch` defaults to true; false unwatches.",
			Effects:  "Changes the watch state for the API user only.",
			Next:     "nothing further; notifications arrive via Confluence.",
		}),
		toolListVersions: formatToolDescription(toolContract{
			Top:      []string{pageRefLine},
			Purpose:  "List the version history of a page.",
			UseWhen:  "You want to see who changed a page and when.",
			Requires: "`page_id` is required. `limit` defaults to 10 (max 50); `cursor` pages through results.",
			Effects:  "Read-only.",
			Next:     "call `confluence_compare_versions` to diff two entries or `confluence_revert_page` to roll back.",
		}),
		toolCompareVersions: formatToolDescription(toolContract{
			Top:      []string{pageRefLine},
			Purpose:  "Diff two versions of a page as unified plain text.",
			UseWhen:  "You need to know what changed between versions.",
			Requires: "`page_id`, `version_a` (before), and `version_b` (after) are required.",
			Effects:  "Read-only; both versions are fetched in parallel.",
			Next:     "call `confluence_revert_page` if the change should be undone.",
		}),
		toolRevertPage: formatToolDescription(toolContract{
			Top:      []string{pageRefLine},
			Purpose:  "Revert a page to a previous version.",
			UseWhen:  "A bad edit needs rolling back.",
			Requires: "`page_id` and `version_number` (the version to restore) are required. `version_message` optionally describes the revert.",
			Effects:  "Creates a new version whose content matches the restored one; history is preserved.",
			Next:     "call `confluence_list_versions` to confirm the new head version.",
		}),
		toolGetContributors: formatToolDescription(toolContract{
			Top:      []string{pageRefLine},
			Purpose:  "List the unique contributors to a page from its version history.",
			UseWhen:  "You want to know who has worked on a page.",
			Requires: "`page_id` is required.",
			Effects:  "Read-only; walks up to 50 versions.",
			Next:     "call `confluence_get_user` with an account ID for details.",
		}),
		toolListAttachments: formatToolDescription(toolContract{
			Top:      []string{pageRefLine},
			Purpose:  "List attachments on a page.",
			UseWhen:  "You want to see the files hanging off a page.",
			Requires: "`page_id` is required. `limit` defaults to 25 (max 100); `cursor` pages through results.",
			Effects:  "Read-only; shows type and humanized size per file.",
			Next:     "call `confluence_download_attachment` to fetch one.",
		}),
		toolUploadAttachment: formatToolDescription(toolContract{
			Top:      []string{pageRefLine},
			Purpose:  "Upload a local file as a page attachment.",
			UseWhen:  "A document or image should be attached to a page.",
			Requires: "`page_id` and `file_path` (a local path readable by the server, at most " + uploadCapText + ") are required. `comment` optionally annotates the upload.",
			Effects:  "Creates the attachment and reports its ID.",
			Next:     "call `confluence_list_attachments` to confirm.",
		}),
		toolDownloadAttachment: formatToolDescription(toolContract{
			Top:      []string{pageRefLine},
			Purpose:  "Download a page attachment to a local file.",
			UseWhen:  "You need an attached file's contents on the server's filesystem.",
			Requires: "`page_id`, `attachment_title` (the filename as listed), and `save_path` are required.",
			Effects:  "Writes the file to save_path, creating parent directories.",
			Next:     "read the saved file.",
		}),
		toolDeleteAttachment: formatToolDescription(toolContract{
			Top:      []string{previewLine, pageRefLine},
			Purpose:  "Delete an attachment from a page.",
			UseWhen:  "An attached file is obsolete and should be removed permanently.",
			Requires: "`page_id` and `attachment_title` are required. `confirm` must be true to delete; false shows a preview.",
			Effects:  "Permanently removes the attachment once confirmed.",
			Next:     "call `confluence_list_attachments` to confirm removal.",
		}),
		toolArchivePage: formatToolDescription(toolContract{
			Top:      []string{previewLine, pageRefLine},
			Purpose:  "Archive a page, removing it from active view.",
			UseWhen:  "A page is no longer current but should stay restorable.",
			Requires: "`page_id` is required. `confirm` must be true to archive; false shows a preview.",
			Effects:  "Sets the page status to archived once confirmed; it can be restored from the archive.",
			Next:     "nothing further unless the archive should be undone in Confluence.",
		}),
		toolMovePage: formatToolDescription(toolContract{
			Top:      []string{previewLine, pageRefLine},
			Purpose:  "Move a page under a new parent.",
			UseWhen:  "The content tree is being reorganized.",
			Requires: "`page_id` and `target_parent_id` are required. `confirm` must be true to move; false shows a preview (cross-space moves are flagged).",
			Effects:  "Re-parents the page once confirmed; two new versions are created (content push and ancestor change).",
			Next:     "call `confluence_get_ancestors` to confirm the new location.",
		}),
		toolCopyPage: formatToolDescription(toolContract{
			Top:      []string{pageRefLine},
			Purpose:  "Copy a page, optionally under a different parent.",
			UseWhen:  "A page should serve as the template for a new one.",
			Requires: "`page_id` is required. `title` defaults to \"Copy of {original}\"; `destination_parent_id` defaults to the same parent; `copy_labels` and `copy_attachments` default to true.",
			Effects:  "Creates the duplicate and reports its ID.",
			Next:     "call `confluence_get_page` with the new ID to edit the copy.",
		}),
		toolGetUser: formatToolDescription(toolContract{
			Purpose:  "Resolve an Atlassian account ID to user details.",
			UseWhen:  "Version history or comments show an account ID you need a name for.",
			Requires: "`account_id` is required.",
			Effects:  "Read-only.",
			Next:     "use the display name in mentions or restriction lists.",
		}),
		toolListCache: formatToolDescription(toolContract{
			Top:      []string{cacheWorkflowLine},
			Purpose:  "List the locally cached page snapshots.",
			UseWhen:  "You want to see which pages have edit sessions in progress.",
			Requires: "No inputs.",
			Effects:  "Read-only listing of IDs, titles, and cache times.",
			Next:     "call `confluence_push_page` for snapshots that still need publishing, or `confluence_clear_cache` to discard.",
		}),
		toolClearCache: formatToolDescription(toolContract{
			Top:      []string{cacheWorkflowLine},
			Purpose:  "Remove cached page snapshots.",
			UseWhen:  "Cached state is stale or an edit session should be abandoned.",
			Requires: "`page_id` optionally targets one snapshot; empty clears all.",
			Effects:  "Deletes local snapshots only; Confluence pages are untouched. Unpushed edits are lost.",
			Next:     "call `confluence_get_page` to start a fresh session.",
		}),
	}
}
