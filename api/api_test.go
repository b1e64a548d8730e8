package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/prefopt/maskrank/pkg/acquisition"
	"github.com/prefopt/maskrank/pkg/loop"
	"github.com/prefopt/maskrank/pkg/session/inmemory"
)

func TestAPI(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "API Suite")
}

// apiTestFeatures builds a feature matrix where candidate i has latent
// utility proportional to i, so consistent labels are easy to derive.
func apiTestFeatures(n int) [][]float64 {
	features := make([][]float64, n)
	for i := range features {
		features[i] = []float64{float64(i), float64(n - i)}
	}
	return features
}

func getJSON(server *Server, path string, out any) *http.Response {
	req, err := http.NewRequest(http.MethodGet, path, nil)
	Expect(err).NotTo(HaveOccurred())

	resp, err := server.app.Test(req)
	Expect(err).NotTo(HaveOccurred())

	if out != nil {
		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(json.Unmarshal(body, out)).To(Succeed())
	}
	return resp
}

func postJSON(server *Server, path string, payload any, out any) *http.Response {
	body, err := json.Marshal(payload)
	Expect(err).NotTo(HaveOccurred())

	req, err := http.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	Expect(err).NotTo(HaveOccurred())
	req.Header.Set("Content-Type", "application/json")

	resp, err := server.app.Test(req)
	Expect(err).NotTo(HaveOccurred())

	if out != nil {
		respBody, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(json.Unmarshal(respBody, out)).To(Succeed())
	}
	return resp
}

// annotate submits consistent preferences for every adjacent ordered pair,
// labeling the higher-index candidate as preferred.
func annotate(server *Server, n int) loop.Progress {
	pairs := make([]acquisition.Pair, 0, 2*(n-1))
	labels := make([]int, 0, 2*(n-1))
	for i := 0; i < n-1; i++ {
		pairs = append(pairs, acquisition.Pair{I: i + 1, J: i})
		labels = append(labels, 1)
		pairs = append(pairs, acquisition.Pair{I: i, J: i + 1})
		labels = append(labels, 0)
	}

	var progress loop.Progress
	resp := postJSON(server, "/preferences", AddPreferencesRequest{
		Pairs:  pairs,
		Labels: labels,
	}, &progress)
	Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
	return progress
}

var _ = Describe("Server", func() {
	var (
		server *Server
		store  *inmemory.Store
	)

	BeforeEach(func() {
		store = inmemory.NewStore()
		cfg := loop.DefaultConfig()
		cfg.Seed = 7
		server = NewServer(Config{ListenAddr: ":0"}, cfg, store, zap.NewNop())
	})

	Describe("GET /ping", func() {
		It("returns pong", func() {
			req, err := http.NewRequest(http.MethodGet, "/ping", nil)
			Expect(err).NotTo(HaveOccurred())

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))

			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal("pong"))
		})
	})

	Describe("POST /sessions", func() {
		It("creates a session and persists it in the store", func() {
			var created CreateSessionResponse
			resp := postJSON(server, "/sessions", CreateSessionRequest{
				Features: apiTestFeatures(6),
			}, &created)

			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(created.SessionID).NotTo(BeEmpty())
			Expect(created.Candidates).To(Equal(6))

			ids, err := store.List(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(ids).To(ContainElement(created.SessionID))
		})

		It("rejects a malformed body", func() {
			req, err := http.NewRequest(http.MethodPost, "/sessions", bytes.NewReader([]byte("{not json")))
			Expect(err).NotTo(HaveOccurred())
			req.Header.Set("Content-Type", "application/json")

			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("rejects fewer than two candidates", func() {
			resp := postJSON(server, "/sessions", CreateSessionRequest{
				Features: apiTestFeatures(1),
			}, nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("creates a session from raw masks", func() {
			masks := make([]MaskPayload, 3)
			for i := range masks {
				pixels := make([]uint8, 16)
				for p := 0; p <= i*4; p++ {
					pixels[p] = 1
				}
				masks[i] = MaskPayload{Width: 4, Height: 4, Pixels: pixels}
			}

			var created CreateSessionResponse
			resp := postJSON(server, "/sessions", CreateSessionRequest{Masks: masks}, &created)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(created.Candidates).To(Equal(3))
		})

		It("rejects a mask whose pixel count does not match its size", func() {
			resp := postJSON(server, "/sessions", CreateSessionRequest{
				Masks: []MaskPayload{
					{Width: 4, Height: 4, Pixels: make([]uint8, 16)},
					{Width: 4, Height: 4, Pixels: make([]uint8, 15)},
				},
			}, nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("rejects both features and masks in one request", func() {
			resp := postJSON(server, "/sessions", CreateSessionRequest{
				Features: apiTestFeatures(3),
				Masks:    []MaskPayload{{Width: 4, Height: 4, Pixels: make([]uint8, 16)}},
			}, nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})

	Describe("GET /sessions", func() {
		It("lists created sessions", func() {
			var created CreateSessionResponse
			postJSON(server, "/sessions", CreateSessionRequest{Features: apiTestFeatures(4)}, &created)

			var listing struct {
				Sessions []string `json:"sessions"`
			}
			resp := getJSON(server, "/sessions", &listing)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(listing.Sessions).To(ContainElement(created.SessionID))
		})
	})

	Describe("GET /sessions/:id", func() {
		It("returns 404 for an unknown session", func() {
			resp := getJSON(server, "/sessions/nonexistent", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})

		It("summarizes an existing session", func() {
			var created CreateSessionResponse
			postJSON(server, "/sessions", CreateSessionRequest{Features: apiTestFeatures(4)}, &created)

			var info struct {
				SessionID        string `json:"session_id"`
				Iteration        int    `json:"iteration"`
				TotalComparisons int    `json:"total_comparisons"`
				Converged        bool   `json:"converged"`
			}
			resp := getJSON(server, "/sessions/"+created.SessionID, &info)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(info.SessionID).To(Equal(created.SessionID))
			Expect(info.Iteration).To(Equal(0))
			Expect(info.Converged).To(BeFalse())
		})
	})

	Describe("DELETE /sessions/:id", func() {
		It("removes the session", func() {
			var created CreateSessionResponse
			postJSON(server, "/sessions", CreateSessionRequest{Features: apiTestFeatures(4)}, &created)

			req, err := http.NewRequest(http.MethodDelete, "/sessions/"+created.SessionID, nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusNoContent))

			resp = getJSON(server, "/sessions/"+created.SessionID, nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})

		It("returns 404 for an unknown session", func() {
			req, err := http.NewRequest(http.MethodDelete, "/sessions/nonexistent", nil)
			Expect(err).NotTo(HaveOccurred())
			resp, err := server.app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(fiber.StatusNotFound))
		})
	})

	Describe("GET /batch", func() {
		It("returns 400 when no session is active", func() {
			resp := getJSON(server, "/batch", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("returns the requested number of pairs", func() {
			postJSON(server, "/sessions", CreateSessionRequest{Features: apiTestFeatures(8)}, nil)

			var batch BatchResponse
			resp := getJSON(server, "/batch?n=3", &batch)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(batch.Pairs).To(HaveLen(3))
			for _, p := range batch.Pairs {
				Expect(p.I).NotTo(Equal(p.J))
			}
		})
	})

	Describe("POST /preferences", func() {
		It("returns 400 when no session is active", func() {
			resp := postJSON(server, "/preferences", AddPreferencesRequest{}, nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("advances the loop and reports progress", func() {
			postJSON(server, "/sessions", CreateSessionRequest{Features: apiTestFeatures(6)}, nil)

			progress := annotate(server, 6)
			Expect(progress.Iteration).To(Equal(1))
			Expect(progress.TotalComparisons).To(Equal(10))
			Expect(progress.Ranking).To(HaveLen(6))
		})

		It("persists the updated session", func() {
			var created CreateSessionResponse
			postJSON(server, "/sessions", CreateSessionRequest{Features: apiTestFeatures(6)}, &created)
			annotate(server, 6)

			doc, err := store.Load(context.Background(), created.SessionID)
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.Iteration).To(Equal(1))
			Expect(doc.TotalComparisons).To(Equal(10))
		})

		It("rejects mismatched pair and label counts", func() {
			postJSON(server, "/sessions", CreateSessionRequest{Features: apiTestFeatures(4)}, nil)

			resp := postJSON(server, "/preferences", AddPreferencesRequest{
				Pairs:  []acquisition.Pair{{I: 0, J: 1}},
				Labels: []int{1, 0},
			}, nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("rejects a batch consisting only of ties", func() {
			postJSON(server, "/sessions", CreateSessionRequest{Features: apiTestFeatures(4)}, nil)

			resp := postJSON(server, "/preferences", AddPreferencesRequest{
				Pairs:  []acquisition.Pair{{I: 0, J: 1}, {I: 2, J: 3}},
				Labels: []int{-1, -1},
			}, nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})
	})

	Describe("GET /ranking", func() {
		It("returns 400 when no session is active", func() {
			resp := getJSON(server, "/ranking", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("returns 400 before any preferences have been added", func() {
			postJSON(server, "/sessions", CreateSessionRequest{Features: apiTestFeatures(4)}, nil)

			resp := getJSON(server, "/ranking", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("returns a full ranking after training", func() {
			postJSON(server, "/sessions", CreateSessionRequest{Features: apiTestFeatures(6)}, nil)
			annotate(server, 6)

			var ranking RankingResponse
			resp := getJSON(server, "/ranking", &ranking)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(ranking.Ranking).To(HaveLen(6))
			Expect(ranking.Scores).To(HaveLen(6))

			seen := make(map[int]bool)
			for _, idx := range ranking.Ranking {
				Expect(idx).To(BeNumerically(">=", 0))
				Expect(idx).To(BeNumerically("<", 6))
				Expect(seen[idx]).To(BeFalse())
				seen[idx] = true
			}
		})
	})

	Describe("GET /progress", func() {
		It("returns 400 when no session is active", func() {
			resp := getJSON(server, "/progress", nil)
			Expect(resp.StatusCode).To(Equal(fiber.StatusBadRequest))
		})

		It("reports zero iterations for a fresh session", func() {
			postJSON(server, "/sessions", CreateSessionRequest{Features: apiTestFeatures(4)}, nil)

			var progress loop.Progress
			resp := getJSON(server, "/progress", &progress)
			Expect(resp.StatusCode).To(Equal(fiber.StatusOK))
			Expect(progress.Iteration).To(Equal(0))
			Expect(progress.Converged).To(BeFalse())
			Expect(progress.Ranking).To(BeEmpty())
		})
	})
})
