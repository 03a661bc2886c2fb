package common

import "sort"

// StringSet is a set of strings
type StringSet map[string]struct{}

// Contains checks if Stringset contains the string
func (ss StringSet) Contains(elem string) bool {
	_, ok := ss[elem]
	return ok
}

// Add adds the string to StringSet
func (ss StringSet) Add(elem string) {
	ss[elem] = struct{}{}
}

// Remove removes the string from StringSet
func (ss StringSet) Remove(elem string) {
	delete(ss, elem)
}

// ToList convert StringSet to a sorted string slice
func (ss StringSet) ToList() []string {
	keys := make([]string, 0, len(ss))
	for s := range ss {
		keys = append(keys, s)
	}
	sort.Strings(keys)
	return keys
}

// PeerIDSet is a set of peer ids
type PeerIDSet map[PeerID]struct{}

// Add adds a peer id to PeerIDSet
func (ps PeerIDSet) Add(id PeerID) {
	ps[id] = struct{}{}
}

// Del removes a peer id from PeerIDSet
func (ps PeerIDSet) Del(id PeerID) {
	delete(ps, id)
}

// Contains checks if peer id is in PeerIDSet
func (ps PeerIDSet) Contains(id PeerID) bool {
	_, ok := ps[id]
	return ok
}

// ToList converts PeerIDSet to a slice of peer ids in ascending order
func (ps PeerIDSet) ToList() []PeerID {
	list := make([]PeerID, 0, len(ps))
	for id := range ps {
		list = append(list, id)
	}
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	return list
}
