package store

import "github.com/media-curator/media-curator/internal/tags"

// Matches reports whether the record satisfies every set field of the
// filter. Tag, character, series and style comparisons are normalized so
// "Sci-Fi" matches "sci fi".
func (f *MediaFilter) Matches(rec *MediaRecord) bool {
	if f.Type != "" && rec.Type != f.Type {
		return false
	}
	if f.Tag != "" && !tags.ContainsMatch(rec.Tags, f.Tag) {
		return false
	}
	if f.Character != "" && !tags.ContainsMatch(rec.CharacterTags, f.Character) {
		return false
	}
	if f.Series != "" && !tags.ContainsMatch(rec.SeriesTags, f.Series) {
		return false
	}
	if f.Style != "" && !tags.Match(rec.StyleLabel, f.Style) {
		return false
	}
	return true
}

// Apply filters the list and applies offset and limit. Backends push the
// media type down to SQL and use this for the normalized tag matching.
func (f *MediaFilter) Apply(list []MediaRecord) []MediaRecord {
	out := make([]MediaRecord, 0, len(list))
	for i := range list {
		if f.Matches(&list[i]) {
			out = append(out, list[i])
		}
	}

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}
