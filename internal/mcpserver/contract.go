package mcpserver

// RecordFormatContract describes the tagged metadata record format that
// LLM consumers should follow when publishing posts.
const RecordFormatContract = `# Gebo Record Format Contract

Every post published through Gebo is a versioned, tagged metadata record.

## Structure

` + "```" + `json
{
  "version": "1.0.1",
  "type": "ORG_PUBLISH_OPPORTUNITY",
  "id": "generated when omitted",
  "author": {"address": "0xabc", "profile_id": "0x01"},
  "attributes": {
    "name": "Food Drive",
    "startDate": "2024-01-01",
    "endDate": "2024-01-02",
    "hoursPerWeek": "5.5",
    "category": "Community",
    "website": "",
    "description": "Help sort food",
    "imageUrl": "/media/abc123.png"
  }
}
` + "```" + `

## Rules

1. **Type tags are fixed.** Opportunities carry ` + "`" + `ORG_PUBLISH_OPPORTUNITY` + "`" + `,
   reward goals carry ` + "`" + `ORG_PUBLISH_GOAL` + "`" + `. No other tags exist.
2. **Versions are bound to the tag.** Opportunity records are version ` + "`" + `1.0.1` + "`" + `,
   goal records are version ` + "`" + `1.0.0` + "`" + `. The server derives the version; never
   set it yourself.
3. **Dates** use ` + "`" + `YYYY-MM-DD` + "`" + `.
4. **Amounts** (` + "`" + `hoursPerWeek` + "`" + `, ` + "`" + `goal` + "`" + `) are positive numbers with at
   most one decimal place, dot or comma separated (e.g. ` + "`" + `5.5` + "`" + `, ` + "`" + `5,5` + "`" + `, ` + "`" + `100` + "`" + `).
5. **Record ids** are generated on first publish. To edit a post, republish
   under the original id; the relay treats it as a new revision.
6. **Images** are referenced by the ` + "`" + `imageUrl` + "`" + ` attribute. Upload bytes via
   the ` + "`" + `upload_asset` + "`" + ` tool first and pass the returned reference. When
   editing without a new image, pass the existing reference unchanged.

## Goal records

` + "```" + `json
{
  "version": "1.0.0",
  "type": "ORG_PUBLISH_GOAL",
  "attributes": {"goal": "600", "goalDate": "2024-12-31"}
}
` + "```" + `

The most recent successfully published goal drives the reward dashboard.
`
