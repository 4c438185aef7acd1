package events

// Group links events sharing a GroupID. The first event of each group in
// list order becomes the container; the others reference it. Relations
// are set on the elements of list, and the returned slice holds only
// containers and ungrouped events, in list order.
func Group(list []Event) []Event {
	first := make(map[string]int, len(list))
	for i := range list {
		list[i].GroupedEvents = nil
		list[i].Container = ""
	}
	top := make([]int, 0, len(list))
	for i := range list {
		gid := list[i].GroupID
		if gid == "" {
			top = append(top, i)
			continue
		}
		c, ok := first[gid]
		if !ok {
			first[gid] = i
			top = append(top, i)
			continue
		}
		list[c].GroupedEvents = append(list[c].GroupedEvents, list[i].ID)
		list[i].Container = list[c].ID
	}
	out := make([]Event, 0, len(top))
	for _, i := range top {
		out = append(out, list[i])
	}
	return out
}
