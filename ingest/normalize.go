package ingest

import (
	"scotty/fetch"
	"scotty/models"
	"strconv"
)

// normalizeEntries converts raw entries into canonical feed items with all
// optional fields defaulted to the empty string. When the source omits its
// own entry id, a sequential fallback scoped to this batch is assigned; the
// fallback is display keying only, deduplication always uses the link.
func normalizeEntries(entries []fetch.Entry) []models.FeedItem {
	idCounter := 0

	items := make([]models.FeedItem, 0, len(entries))
	for _, entry := range entries {
		orgId := entry.Id
		if orgId == "" {
			idCounter++
			orgId = strconv.Itoa(idCounter)
		}

		items = append(items, models.FeedItem{
			OrgId:       orgId,
			Title:       entry.Title,
			Link:        entry.Link,
			PubDate:     entry.Published,
			Description: entry.Description,
		})
	}

	return items
}
