package source

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rekrytera/signals-cli/internal/model"
)

func TestFilter(t *testing.T) {
	t.Parallel()

	items := []model.Item{
		{ExternalID: "1", Title: "Lagerarbetare", Company: "Nordic Fulfilment AB", Description: "Truckkort B1 krävs"},
		{ExternalID: "2", Title: "Legitimerad Sjuksköterska", Company: "Vårdbolaget", Description: "Natt"},
		{ExternalID: "3", Title: "Truckförare", Company: "Advokatfirman Svea", Description: "Internlogistik"},
		{ExternalID: "4", Title: "Snickare", Company: "Byggarna", Description: "Vi söker en erfaren advokat... nej, snickare"},
	}

	t.Run("drops matches in title company and description", func(t *testing.T) {
		t.Parallel()
		out := Filter(items, []string{"sjuksköterska", "advokat"})
		ids := make([]string, len(out))
		for i, it := range out {
			ids[i] = it.ExternalID
		}
		assert.Equal(t, []string{"1"}, ids)
	})

	t.Run("matching is case-insensitive", func(t *testing.T) {
		t.Parallel()
		out := Filter(items, []string{"SJUKSKÖTERSKA"})
		assert.Len(t, out, 3)
	})

	t.Run("empty keyword list keeps everything", func(t *testing.T) {
		t.Parallel()
		out := Filter(items, nil)
		assert.Equal(t, items, out)
	})

	t.Run("blank keywords are ignored", func(t *testing.T) {
		t.Parallel()
		out := Filter(items, []string{""})
		assert.Len(t, out, 4)
	})

	t.Run("order of survivors is preserved", func(t *testing.T) {
		t.Parallel()
		out := Filter(items, []string{"sjuksköterska"})
		assert.Equal(t, "1", out[0].ExternalID)
		assert.Equal(t, "3", out[1].ExternalID)
		assert.Equal(t, "4", out[2].ExternalID)
	})

	t.Run("no items", func(t *testing.T) {
		t.Parallel()
		out := Filter(nil, []string{"advokat"})
		assert.Empty(t, out)
	})
}
