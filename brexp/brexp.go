/*
Brexp is a simple tool which helps working with trees in newick
format. It has five modes: "brlen" will export all the branch lengths,
"brtree" will export tree with branch number labels, "splits" will
list the non-trivial splits, "normal" will print the unrooted binary
tree used by minsq and "rf" will print the Robinson-Foulds distance to
another tree.
*/
package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/op/go-logging"
	"gopkg.in/alecthomas/kingpin.v2"

	"bitbucket.org/Davydov/minsq/tree"
)

var log = logging.MustGetLogger("brexp")

var (
	app        = kingpin.New("brexp", "newick tree utility")
	inFileName = app.Flag("in", "input filename, stdin by default").ExistingFile()
	otherF     = app.Flag("other", "second tree for the rf mode").ExistingFile()
	mode       = app.Flag("mode", "program mode").Default("brlen").
			Enum("brlen", "brtree", "splits", "normal", "rf")
)

func readTree(fn string, taxa *tree.Taxa) (*tree.Tree, error) {
	var rd io.Reader = os.Stdin
	if fn != "" {
		f, err := os.Open(fn)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		rd = f
	}
	return tree.ParseNewick(rd, taxa)
}

// splitStrings returns every non-trivial split as a sorted list of the
// taxa on the side without the first taxon.
func splitStrings(t *tree.Tree, taxa *tree.Taxa) (res []string) {
	for _, s := range t.Splits(taxa.Len()) {
		var names []string
		for i, e := s.NextSet(0); e; i, e = s.NextSet(i + 1) {
			names = append(names, taxa.Name(int(i)))
		}
		sort.Strings(names)
		res = append(res, strings.Join(names, ","))
	}
	sort.Strings(res)
	return
}

// brlen prints the branch lengths by node id.
func brlen(w io.Writer, t *tree.Tree) {
	for _, id := range t.Preorder() {
		if !t.IsRoot(id) {
			fmt.Fprintf(w, "br%d=%f\n", id, t.BranchLength(id))
		}
	}
}

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	taxa := tree.NewTaxa()
	t, err := readTree(*inFileName, taxa)
	if err != nil {
		log.Fatal(err)
	}
	switch *mode {
	case "brlen":
		brlen(os.Stdout, t)
	case "brtree":
		fmt.Println(t.BrString())
	case "splits":
		for _, s := range splitStrings(t, taxa) {
			fmt.Println(s)
		}
	case "normal":
		t.Normalize()
		fmt.Println(t)
	case "rf":
		if *otherF == "" {
			log.Fatal("rf mode requires -other")
		}
		other, err := readTree(*otherF, taxa)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(tree.RobinsonFoulds(t, other, taxa.Len()))
	}
}
