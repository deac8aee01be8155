// Package domain holds the SES event and daily statistics types shared by
// ingestion, storage, aggregation and the query API.
//
// An Event carries its kind-specific data as a Detail. Each EventKind has
// exactly one Detail variant, and Event.Kind is derived from it, so a kind
// and its fields cannot disagree. Stores do not persist variants directly:
// FlattenDetail turns one into the nullable DetailFields columns and
// DetailFields.Detail rebuilds it, failing on an unknown kind.
//
// Rates are percentages rounded to two places by RoundRate. DailyStats
// divides by sends, or by deliveries on days without sends; StatsTotals
// always divides by sends. Dates are calendar dates formatted with
// DateLayout and carried as UTC midnights.
package domain
