package analyzer_test

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/serplens/engine/pkg/types"
)

var _ = Describe("Analyze API", func() {
	Context("Single field analysis", func() {
		It("reports a short title as optimal and untruncated", func() {
			envelope, status, err := testEnv.PostJSON("/analyze", types.AnalyzeAPIRequest{
				Title: "Your Meta Title",
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))
			Expect(envelope.Success).To(BeTrue())

			var data types.AnalyzeAPIData
			Expect(decodeData(envelope, &data)).To(Succeed())
			Expect(data.Title).NotTo(BeNil())
			Expect(data.Description).To(BeNil())

			Expect(data.Title.CharacterCount).To(Equal(15))
			Expect(data.Title.PixelWidth).To(BeNumerically(">", 0))
			Expect(data.Title.PixelWidth).To(BeNumerically("<", 600))
			Expect(data.Title.IsTruncated).To(BeFalse())
			Expect(data.Title.IsOptimal).To(BeTrue())
			Expect(data.Title.TruncatedText).To(Equal("Your Meta Title"))
			Expect(data.Title.RecommendedMaxChars).To(BeNumerically(">", 0))
			Expect(data.Title.MaxPixels).To(Equal(float64(600)))
		})

		It("truncates an overlong title at the pixel budget with a trailing ellipsis", func() {
			long := strings.Repeat("Premium handcrafted widgets ", 10)

			envelope, status, err := testEnv.PostJSON("/analyze", types.AnalyzeAPIRequest{Title: long})
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))

			var data types.AnalyzeAPIData
			Expect(decodeData(envelope, &data)).To(Succeed())
			Expect(data.Title).NotTo(BeNil())

			Expect(data.Title.IsTruncated).To(BeTrue())
			Expect(data.Title.IsOptimal).To(BeFalse())
			Expect(data.Title.PixelWidth).To(BeNumerically(">", 600))
			Expect(data.Title.TruncatedText).To(HaveSuffix("…"))
			Expect(len(data.Title.TruncatedText)).To(BeNumerically("<", len(long)))
			// The preserved prefix is the start of the input, untouched
			prefix := strings.TrimSuffix(data.Title.TruncatedText, "…")
			Expect(strings.HasPrefix(long, prefix)).To(BeTrue())
		})

		It("flags a too-short description and keeps the minimum in the response", func() {
			envelope, status, err := testEnv.PostJSON("/analyze", types.AnalyzeAPIRequest{
				Description: "Brief.",
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))

			var data types.AnalyzeAPIData
			Expect(decodeData(envelope, &data)).To(Succeed())
			Expect(data.Description).NotTo(BeNil())

			Expect(data.Description.IsTooShort).NotTo(BeNil())
			Expect(*data.Description.IsTooShort).To(BeTrue())
			Expect(data.Description.IsOptimal).To(BeFalse())
			Expect(data.Description.MinPixels).NotTo(BeNil())
			Expect(*data.Description.MinPixels).To(Equal(float64(430)))
		})

		It("treats a mid-length description as optimal", func() {
			envelope, status, err := testEnv.PostJSON("/analyze", types.AnalyzeAPIRequest{
				Description: "Practical guidance for writing meta descriptions that fill the snippet without truncation.",
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))

			var data types.AnalyzeAPIData
			Expect(decodeData(envelope, &data)).To(Succeed())
			Expect(data.Description).NotTo(BeNil())

			Expect(data.Description.IsTruncated).To(BeFalse())
			Expect(*data.Description.IsTooShort).To(BeFalse())
			Expect(data.Description.IsOptimal).To(BeTrue())
		})

		It("analyzes both fields in one request", func() {
			envelope, status, err := testEnv.PostJSON("/analyze", types.AnalyzeAPIRequest{
				Title:       "Widgets | Example Store",
				Description: "Shop the full widget range with fast shipping and a two year warranty on all models.",
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))

			var data types.AnalyzeAPIData
			Expect(decodeData(envelope, &data)).To(Succeed())
			Expect(data.Title).NotTo(BeNil())
			Expect(data.Description).NotTo(BeNil())
		})

		It("accepts fields as GET query parameters", func() {
			envelope, status, err := testEnv.Get("/analyze?title=" + url.QueryEscape("Query Param Title"))
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))

			var data types.AnalyzeAPIData
			Expect(decodeData(envelope, &data)).To(Succeed())
			Expect(data.Title).NotTo(BeNil())
			Expect(data.Title.CharacterCount).To(Equal(17))
		})
	})

	Context("Validation", func() {
		It("rejects a request with no fields", func() {
			envelope, status, err := testEnv.PostJSON("/analyze", types.AnalyzeAPIRequest{})
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(envelope.Success).To(BeFalse())
			Expect(envelope.Message).To(ContainSubstring("at least one of title or description"))
		})

		It("rejects whitespace-only fields", func() {
			envelope, status, err := testEnv.PostJSON("/analyze", types.AnalyzeAPIRequest{Title: "   "})
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(http.StatusBadRequest))
			Expect(envelope.Success).To(BeFalse())
		})
	})

	Context("Event logging", func() {
		It("writes one event line per analyzed field", func() {
			_, status, err := testEnv.PostJSON("/analyze", types.AnalyzeAPIRequest{
				Title: "Event Log Title",
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))

			Eventually(testEnv.ReadEventLog, 3*time.Second, 100*time.Millisecond).
				Should(ContainSubstring("\tanalyze\ttitle\t"))
		})
	})
})
