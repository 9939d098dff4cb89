package optimize

import (
	"math"

	"bitbucket.org/Davydov/minsq/tree"
)

// NeighborJoining builds a starting tree from a complete distance
// matrix over the taxa. Ties are broken by the lowest pair of indices
// and negative branch lengths are set to zero. The result is
// normalized.
func NeighborJoining(d [][]float64, taxa *tree.Taxa) *tree.Tree {
	n := len(d)
	t := tree.New()
	// node ids and distances of the active clusters
	act := make([]int, n)
	dd := make([][]float64, n)
	for i := range act {
		act[i] = t.AddNode(-1, taxa.Name(i), i)
		dd[i] = append([]float64(nil), d[i]...)
	}
	join := func(id, parent int, length float64) {
		t.Attach(id, parent)
		t.Node(id).Length = math.Max(0, length)
		t.Node(id).HasLength = true
	}
	r := make([]float64, n)
	for len(act) > 3 {
		k := len(act)
		for i := 0; i < k; i++ {
			r[i] = 0
			for j := 0; j < k; j++ {
				r[i] += dd[i][j]
			}
		}
		bi, bj := 0, 1
		best := math.Inf(1)
		for i := 0; i < k; i++ {
			for j := i + 1; j < k; j++ {
				if q := float64(k-2)*dd[i][j] - r[i] - r[j]; q < best {
					best, bi, bj = q, i, j
				}
			}
		}
		li := dd[bi][bj]/2 + (r[bi]-r[bj])/float64(2*(k-2))
		lj := dd[bi][bj] - li
		u := t.AddNode(-1, "", -1)
		join(act[bi], u, li)
		join(act[bj], u, lj)
		for m := 0; m < k; m++ {
			if m != bi && m != bj {
				v := (dd[bi][m] + dd[bj][m] - dd[bi][bj]) / 2
				dd[bi][m], dd[m][bi] = v, v
			}
		}
		dd[bi][bi] = 0
		act[bi] = u
		// the last active cluster takes the place of bj
		last := k - 1
		act[bj] = act[last]
		for m := 0; m < k; m++ {
			dd[bj][m] = dd[last][m]
			dd[m][bj] = dd[m][last]
		}
		dd[bj][bj] = 0
		act = act[:last]
	}
	root := t.AddNode(-1, "", -1)
	if len(act) == 3 {
		join(act[0], root, (dd[0][1]+dd[0][2]-dd[1][2])/2)
		join(act[1], root, (dd[0][1]+dd[1][2]-dd[0][2])/2)
		join(act[2], root, (dd[0][2]+dd[1][2]-dd[0][1])/2)
	} else {
		for _, id := range act {
			join(id, root, 0)
		}
	}
	t.SetRoot(root)
	t.Normalize()
	return t
}
