package analyzer_test

import (
	"fmt"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/serplens/engine/pkg/types"
)

var _ = Describe("Batch Analyze API", func() {
	Context("Ordering and isolation", func() {
		It("returns results in request order with per-item failures in place", func() {
			req := types.BatchAPIRequest{
				Items: []types.BatchAPIItem{
					{ID: "first", Title: "Front Page Title"},
					{ID: "second"}, // no fields: fails alone
					{ID: "third", Description: "A usable description for the third batch entry covering enough ground to measure."},
				},
			}

			envelope, status, err := testEnv.PostJSON("/analyze/batch", req)
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK), "item failures must not fail the batch")
			Expect(envelope.Success).To(BeTrue())

			var data types.BatchAPIData
			Expect(decodeData(envelope, &data)).To(Succeed())
			Expect(data.Count).To(Equal(3))
			Expect(data.Items).To(HaveLen(3))
			Expect(data.CompletedAt.IsZero()).To(BeFalse())

			Expect(data.Items[0].ID).To(Equal("first"))
			Expect(data.Items[0].Title).NotTo(BeNil())
			Expect(data.Items[0].Error).To(BeEmpty())

			Expect(data.Items[1].ID).To(Equal("second"))
			Expect(data.Items[1].Error).To(ContainSubstring("at least one of title or description"))
			Expect(data.Items[1].Title).To(BeNil())

			Expect(data.Items[2].ID).To(Equal("third"))
			Expect(data.Items[2].Description).NotTo(BeNil())
			Expect(data.Items[2].Error).To(BeEmpty())
		})

		It("keeps order across a batch wider than the worker pool", func() {
			var items []types.BatchAPIItem
			for i := 0; i < 40; i++ {
				items = append(items, types.BatchAPIItem{
					ID:    fmt.Sprintf("item-%02d", i),
					Title: fmt.Sprintf("Catalog Page %02d", i),
				})
			}

			envelope, status, err := testEnv.PostJSON("/analyze/batch", types.BatchAPIRequest{Items: items})
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))

			var data types.BatchAPIData
			Expect(decodeData(envelope, &data)).To(Succeed())
			Expect(data.Items).To(HaveLen(40))
			for i, item := range data.Items {
				Expect(item.ID).To(Equal(fmt.Sprintf("item-%02d", i)), "results must keep request order")
				Expect(item.Title).NotTo(BeNil())
			}
		})
	})

	Context("Validation", func() {
		It("rejects an empty items array", func() {
			envelope, status, err := testEnv.PostJSON("/analyze/batch", types.BatchAPIRequest{Items: []types.BatchAPIItem{}})
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(envelope.Message).To(ContainSubstring("cannot be empty"))
		})

		It("rejects a batch above the configured limit", func() {
			items := make([]types.BatchAPIItem, 51)
			for i := range items {
				items[i] = types.BatchAPIItem{Title: fmt.Sprintf("Title %d", i)}
			}

			envelope, status, err := testEnv.PostJSON("/analyze/batch", types.BatchAPIRequest{Items: items})
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(envelope.Message).To(ContainSubstring("cannot exceed 50 entries"))
		})
	})
})
