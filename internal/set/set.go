package set

import "sort"

type StringSet struct {
	items map[string]struct{}
}

func NewStringSet(values ...string) *StringSet {
	set := &StringSet{items: map[string]struct{}{}}
	for _, value := range values {
		set.Put(value)
	}
	return set
}

func (set *StringSet) Has(value string) bool {
	_, ok := set.items[value]
	return ok
}

func (set *StringSet) Put(value string) {
	set.items[value] = struct{}{}
}

func (set *StringSet) Len() int {
	return len(set.items)
}

// List returns items in sorted order.
func (set *StringSet) List() []string {
	slice := make([]string, len(set.items))
	i := 0
	for value := range set.items {
		slice[i] = value
		i++
	}
	sort.Strings(slice)
	return slice
}
