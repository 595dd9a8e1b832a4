package citydb

import (
	. "gopkg.in/check.v1"
)

type DictionarySuite struct{}

var _ = Suite(&DictionarySuite{})

func (s *DictionarySuite) TestFinalizeSortsAndDedupes(c *C) {
	b := NewDictionaryBuilder(0)
	for _, v := range []string{"Peru", "Chile", "Peru", "Argentina", "Chile", "Åland"} {
		b.Add(v)
	}
	d := b.Finalize()

	c.Assert(d.Strings(), DeepEquals, []string{"Argentina", "Chile", "Peru", "Åland"})
	c.Assert(d.Len(), Equals, 4)
	for i, v := range d.Strings() {
		idx, ok := d.Index(v)
		c.Assert(ok, Equals, true)
		c.Assert(idx, Equals, i)
		c.Assert(d.At(i), Equals, v)
	}
}

func (s *DictionarySuite) TestLookupMisses(c *C) {
	b := NewDictionaryBuilder(1)
	b.Add("x")
	d := b.Finalize()

	_, ok := d.Index("y")
	c.Assert(ok, Equals, false)
	c.Assert(d.At(-1), Equals, "")
	c.Assert(d.At(1), Equals, "")
}

func (s *DictionarySuite) TestStringsIsACopy(c *C) {
	b := NewDictionaryBuilder(1)
	b.Add("x")
	d := b.Finalize()

	out := d.Strings()
	out[0] = "mutated"
	c.Assert(d.At(0), Equals, "x")
}

func (s *DictionarySuite) TestAddAfterFinalizePanics(c *C) {
	b := NewDictionaryBuilder(1)
	b.Finalize()
	c.Assert(func() { b.Add("late") }, PanicMatches, `citydb: Add called on a finalized dictionary builder`)
	c.Assert(func() { b.Finalize() }, PanicMatches, `citydb: Finalize called twice.*`)
}

func (s *DictionarySuite) TestCleanRegion(c *C) {
	for in, want := range map[string]string{
		"/Kent/":      "Kent",
		"//Kent":      "Kent",
		"Kent":        "Kent",
		"North/South": "North/South",
		"/":           "",
	} {
		c.Assert(CleanRegion(in), Equals, want, Commentf("input %q", in))
	}
}

func (s *DictionarySuite) TestDedupeRegionsRemapsIndices(c *C) {
	regions := []string{"A", "B", "A", "C", "B"}
	cities := Cities{{Region: 0}, {Region: 1}, {Region: 2}, {Region: 3}, {Region: 4}}

	out := dedupeRegions(regions, cities)

	c.Assert(out, DeepEquals, []string{"A", "B", "C"})
	got := make([]int, len(cities))
	for i, city := range cities {
		got[i] = city.Region
	}
	c.Assert(got, DeepEquals, []int{0, 1, 0, 2, 1})
}
