package analyzer_test

import (
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Operational Endpoints", func() {
	Context("Health", func() {
		It("reports status and the active measurement backend", func() {
			envelope, status, err := testEnv.Get("/health")
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))

			var health struct {
				Status  string `json:"status"`
				Backend string `json:"backend"`
			}
			Expect(decodeData(envelope, &health)).To(Succeed())
			Expect(health.Status).To(Equal("ok"))
			Expect(health.Backend).To(Equal("canvas"))
		})

		It("echoes the client request ID in the response header", func() {
			req, err := http.NewRequest("GET", testEnv.BaseURL+"/health", nil)
			Expect(err).ToNot(HaveOccurred())
			req.Header.Set("X-Request-ID", "acceptance-trace-1")

			resp, err := http.DefaultClient.Do(req)
			Expect(err).ToNot(HaveOccurred())
			defer resp.Body.Close()

			Expect(resp.Header.Get("X-Request-ID")).To(ContainSubstring("acceptance-trace-1"))
		})
	})

	Context("Status", func() {
		It("rejects requests without the internal auth key", func() {
			_, status, err := testEnv.Get("/status")
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(http.StatusUnauthorized))
		})

		It("reports runtime state and the resolved profiles", func() {
			envelope, status, err := testEnv.GetWithAuth("/status")
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(http.StatusOK))

			var report struct {
				Service struct {
					InstanceID string `json:"instance_id"`
					Backend    string `json:"backend"`
				} `json:"service"`
				Runtime struct {
					Goroutines int `json:"goroutines"`
				} `json:"runtime"`
				Profiles struct {
					Title struct {
						MaxPixels float64 `json:"max_pixels"`
					} `json:"title"`
					Description struct {
						MinPixels float64 `json:"min_pixels"`
					} `json:"description"`
				} `json:"profiles"`
			}
			Expect(decodeData(envelope, &report)).To(Succeed())

			Expect(report.Service.InstanceID).To(Equal("acceptance-analyzer"))
			Expect(report.Service.Backend).To(Equal("canvas"))
			Expect(report.Runtime.Goroutines).To(BeNumerically(">", 0))
			Expect(report.Profiles.Title.MaxPixels).To(Equal(float64(600)))
			Expect(report.Profiles.Description.MinPixels).To(Equal(float64(430)))
		})
	})

	Context("Routing", func() {
		It("returns 404 for unknown paths", func() {
			envelope, status, err := testEnv.Get("/unknown")
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(http.StatusNotFound))
			Expect(envelope.Success).To(BeFalse())
		})

		It("returns 405 for known paths with the wrong method", func() {
			_, status, err := testEnv.Get("/analyze/batch")
			Expect(err).ToNot(HaveOccurred())
			Expect(status).To(Equal(http.StatusMethodNotAllowed))
		})
	})
})
