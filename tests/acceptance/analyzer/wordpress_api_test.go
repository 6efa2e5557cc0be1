package analyzer_test

import (
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/serplens/engine/pkg/types"
)

var _ = Describe("WordPress Content API", func() {
	Context("Fetching", func() {
		It("aggregates paginated posts in order with HTML reduced to text", func() {
			envelope, status, err := testEnv.PostJSON("/wordpress/posts", types.WordPressAPIRequest{
				SiteURL: testEnv.OriginURL,
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))
			Expect(envelope.Success).To(BeTrue())

			var data types.WordPressAPIData
			Expect(decodeData(envelope, &data)).To(Succeed())

			Expect(data.Resource).To(Equal("posts"))
			Expect(data.Total).To(Equal(6))
			Expect(data.TotalPages).To(Equal(2))
			Expect(data.PagesFetched).To(Equal(2))
			Expect(data.Cached).To(BeFalse())
			Expect(data.Items).To(HaveLen(6))

			for i, item := range data.Items {
				Expect(item.ID).To(Equal(i+1), "items must keep site-side order")
			}

			// Entities decoded, tags stripped
			Expect(data.Items[0].Title).To(Equal("Post 1 – SerpLens Blog"))
			Expect(data.Items[0].Description).To(Equal("Excerpt for post 1 with markup."))

			Expect(testEnv.OriginHits()).To(Equal(int64(2)))
		})

		It("serves the second identical fetch from cache", func() {
			req := types.WordPressAPIRequest{SiteURL: testEnv.OriginURL}

			_, status, err := testEnv.PostJSON("/wordpress/posts", req)
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))
			hitsAfterFirst := testEnv.OriginHits()

			envelope, status, err := testEnv.PostJSON("/wordpress/posts", req)
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))

			var data types.WordPressAPIData
			Expect(decodeData(envelope, &data)).To(Succeed())
			Expect(data.Cached).To(BeTrue())
			Expect(data.Items).To(HaveLen(6))
			Expect(testEnv.OriginHits()).To(Equal(hitsAfterFirst), "cache hits must not touch the origin")
		})

		It("honors a requested page cap", func() {
			envelope, status, err := testEnv.PostJSON("/wordpress/posts", types.WordPressAPIRequest{
				SiteURL:  testEnv.OriginURL,
				MaxPages: 1,
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))

			var data types.WordPressAPIData
			Expect(decodeData(envelope, &data)).To(Succeed())
			Expect(data.PagesFetched).To(Equal(1))
			Expect(data.Items).To(HaveLen(3))
			Expect(data.TotalPages).To(Equal(2), "the site-reported page count is passed through")
		})
	})

	Context("Cache invalidation", func() {
		It("drops cached fetches so the next request hits the origin", func() {
			req := types.WordPressAPIRequest{SiteURL: testEnv.OriginURL}

			_, status, err := testEnv.PostJSON("/wordpress/posts", req)
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))
			hitsAfterFirst := testEnv.OriginHits()

			envelope, status, err := testEnv.PostJSONWithAuth("/wordpress/cache/invalidate",
				types.WordPressInvalidateRequest{SiteURL: testEnv.OriginURL})
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))

			var inv types.WordPressInvalidateData
			Expect(decodeData(envelope, &inv)).To(Succeed())
			Expect(inv.Invalidated).To(BeNumerically(">=", 1))

			envelope, status, err = testEnv.PostJSON("/wordpress/posts", req)
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))

			var data types.WordPressAPIData
			Expect(decodeData(envelope, &data)).To(Succeed())
			Expect(data.Cached).To(BeFalse())
			Expect(testEnv.OriginHits()).To(BeNumerically(">", hitsAfterFirst))
		})

		It("requires the internal auth key", func() {
			_, status, err := testEnv.PostJSON("/wordpress/cache/invalidate",
				types.WordPressInvalidateRequest{SiteURL: testEnv.OriginURL})
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(http.StatusUnauthorized))
		})
	})

	Context("Validation", func() {
		It("rejects an unknown resource", func() {
			envelope, status, err := testEnv.PostJSON("/wordpress/posts", types.WordPressAPIRequest{
				SiteURL:  testEnv.OriginURL,
				Resource: "comments",
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(envelope.Message).To(ContainSubstring("invalid resource"))
		})

		It("rejects hosts outside the allowlist", func() {
			envelope, status, err := testEnv.PostJSON("/wordpress/posts", types.WordPressAPIRequest{
				SiteURL: "https://not-allowed.example.com",
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(envelope.Message).To(ContainSubstring("not allowed"))
		})

		It("rejects a missing site_url", func() {
			_, status, err := testEnv.PostJSON("/wordpress/posts", types.WordPressAPIRequest{})
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(http.StatusBadRequest))
		})
	})
})
