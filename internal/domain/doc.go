// Package domain normalizes cloud provider outage records and DShield port
// history into the two datasets the overlay is built from: a sorted incident
// table and a gap-free daily activity series.
//
// # Incident Sources
//
// Three status sources are supported, each with its own payload shape:
//
//	AWS         RSS feed of individual status updates. Updates for the same
//	            incident share the part of the <guid> after "#", e.g.
//	            "http://status.aws.amazon.com/#ec2-us-east-1_1704096000".
//	Cloudflare  Statuspage v2 JSON: {"incidents": [{id, name, impact,
//	            created_at, updated_at, resolved_at, shortlink}, ...]}.
//	GCP         JSON array of incidents: [{number, id, external_desc, begin,
//	            end, most_recent_update, severity, uri, ...}, ...].
//
// All three are reduced to [Incident] by an [Aggregator]. Aggregators only
// differ in their key, window and severity rules; all of them share
// [ParseTimestamp] / [NormalizeTime] and [Clamp].
//
// # Time Conventions
//
// Every instant in this package is a UTC time.Time. Inputs that carry an
// offset or a zone abbreviation are converted to UTC; inputs without one are
// assumed to already be UTC. Common North American abbreviations (PST, PDT,
// EST, ...) are resolved to their fixed offsets since the AWS feed uses them.
//
// Calendar days are represented as midnight UTC, see [DateOf].
//
// # DShield Port History
//
// The SANS ISC porthistory API does not return one stable shape. The entry
// list may be the document itself, sit under "portinfo", sit under
// "porthistory" (object or array), or be spread over an object keyed by
// stringified indices ("0", "1", ...). [ResolveEntries] tries these shapes in
// a fixed order and returns the first non-empty match.
//
// Metric values are strings with thousands separators ("1,200"). Values that
// do not parse are recorded as zero instead of dropping the entry.
package domain
