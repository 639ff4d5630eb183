package geonews

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Clustering errors.
var (
	// ErrMalformedInput marks a structural precondition violation such as
	// vectors of different dimensions. It indicates an upstream bug.
	ErrMalformedInput = errors.New("malformed clustering input")

	// ErrClusteringFailure marks a computation that could not complete,
	// for example because a vector contains NaN.
	ErrClusteringFailure = errors.New("clustering failed")
)

// NoiseLabel is the label of an article that belongs to no group. The
// agglomerative engine never assigns it, but group classification drops any
// article carrying it.
const NoiseLabel = -1

const groupsPath = "clusters/groups.json"

var ClusterArticlesCmd = &cobra.Command{
	Use:   "cluster-articles",
	Short: "Validate, embed and group fetched articles into events",
	Run: func(cmd *cobra.Command, args []string) {
		if err := clusterArticles(cmd.Context()); err != nil {
			log.Error().Err(err).Msg("Failed to cluster articles")
			return
		}
		log.Info().Msg("Article clustering complete.")
	},
}

func clusterArticles(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if Config.OpenAIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is not set")
	}

	raw, err := readRawArticles(rawArticlesPath)
	if err != nil {
		return err
	}
	articles, _ := ValidateArticles(raw)

	pipeline := &Pipeline{
		Encoder:           NewOpenAIEncoder(Config.OpenAIKey, Config.EmbeddingModel),
		Threshold:         Config.DistanceThreshold,
		Workers:           Config.EmbedWorkers,
		SingletonFallback: Config.SingletonFallback,
	}
	groups, err := pipeline.Run(ctx, articles)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("discarding groups: %w", err)
	}

	return writeJSON(groupsPath, groups)
}

// ClusterEmbeddings partitions vectors with bottom-up agglomerative clustering
// using cosine distance and average linkage. Clusters are merged closest pair
// first until the closest remaining pair is farther apart than threshold.
//
// The returned labels are index-aligned with vectors and numbered from 0 in
// order of first appearance. Equal distances are resolved in favour of the
// pair with the lowest member indexes, so identical input always produces the
// identical partition.
func ClusterEmbeddings(vectors [][]float64, threshold float64) ([]int, error) {
	n := len(vectors)
	if n == 0 {
		return []int{}, nil
	}
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) || threshold <= 0 {
		return nil, fmt.Errorf("%w: distance threshold must be a positive number, got %v", ErrMalformedInput, threshold)
	}

	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: vector 0 is empty", ErrMalformedInput)
	}
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has %d dimensions, expected %d", ErrMalformedInput, i, len(v), dim)
		}
	}

	dist, err := cosineDistances(vectors)
	if err != nil {
		return nil, err
	}

	// Each cluster is identified by its lowest member index.
	alive := make([]bool, n)
	size := make([]int, n)
	members := make([][]int, n)
	for i := range n {
		alive[i] = true
		size[i] = 1
		members[i] = []int{i}
	}

	merges := 0
	for {
		best := math.Inf(1)
		bi, bj := -1, -1
		for i := range n {
			if !alive[i] {
				continue
			}
			for j := i + 1; j < n; j++ {
				if alive[j] && dist[i][j] < best {
					best = dist[i][j]
					bi, bj = i, j
				}
			}
		}
		if bi < 0 || best > threshold {
			break
		}

		// Average linkage update of every other cluster's distance to the merged one.
		si, sj := float64(size[bi]), float64(size[bj])
		for k := range n {
			if !alive[k] || k == bi || k == bj {
				continue
			}
			d := (si*dist[bi][k] + sj*dist[bj][k]) / (si + sj)
			if math.IsNaN(d) || math.IsInf(d, 0) {
				return nil, fmt.Errorf("%w: non-finite linkage distance between clusters %d and %d", ErrClusteringFailure, bi, k)
			}
			dist[bi][k] = d
			dist[k][bi] = d
		}

		members[bi] = append(members[bi], members[bj]...)
		size[bi] += size[bj]
		alive[bj] = false
		members[bj] = nil
		merges++

		log.Debug().Int("into", bi).Int("from", bj).Float64("distance", best).Msg("Merged clusters")
	}

	labels := make([]int, n)
	next := 0
	for i := range n {
		if !alive[i] {
			continue
		}
		for _, idx := range members[i] {
			labels[idx] = next
		}
		next++
	}

	log.Info().Int("articles", n).Int("clusters", next).Int("merges", merges).Float64("threshold", threshold).Msg("Clustering complete")
	return labels, nil
}

// cosineDistances returns the full matrix of 1 - cos(a, b) for every pair of
// rows. Values are clamped to [0, 2] to absorb rounding error.
func cosineDistances(vectors [][]float64) ([][]float64, error) {
	n, dim := len(vectors), len(vectors[0])

	x := mat.NewDense(n, dim, nil)
	norms := make([]float64, n)
	for i, v := range vectors {
		if floats.HasNaN(v) {
			return nil, fmt.Errorf("%w: vector %d contains NaN", ErrClusteringFailure, i)
		}
		norms[i] = floats.Norm(v, 2)
		if norms[i] == 0 || math.IsNaN(norms[i]) || math.IsInf(norms[i], 0) {
			return nil, fmt.Errorf("%w: vector %d has norm %v", ErrClusteringFailure, i, norms[i])
		}
		x.SetRow(i, v)
	}

	var gram mat.Dense
	gram.Mul(x, x.T())

	dist := make([][]float64, n)
	for i := range n {
		dist[i] = make([]float64, n)
	}
	for i := range n {
		for j := i + 1; j < n; j++ {
			d := 1 - gram.At(i, j)/(norms[i]*norms[j])
			if math.IsNaN(d) || math.IsInf(d, 0) {
				return nil, fmt.Errorf("%w: non-finite distance between vectors %d and %d", ErrClusteringFailure, i, j)
			}
			d = math.Min(math.Max(d, 0), 2)
			dist[i][j] = d
			dist[j][i] = d
		}
	}
	return dist, nil
}
