package portabletext

// GroupLists folds runs of list-item blocks into *List containers. Items
// with a deeper Level nest under the preceding item; a change of list kind
// at the same level starts a new list. All other nodes keep their relative
// order. The input is not modified.
func GroupLists(doc Document) Document {
	out := make(Document, 0, len(doc))
	var open []*List

	for _, n := range doc {
		b, ok := n.(*Block)
		if !ok || b.ListItem == "" {
			open = nil
			out = append(out, n)
			continue
		}

		level := max(b.Level, 1)
		for len(open) > 0 {
			top := open[len(open)-1]
			if top.Level > level || (top.Level == level && top.Kind != b.ListItem) {
				open = open[:len(open)-1]
				continue
			}
			break
		}

		item := &ListItem{Block: b}
		if len(open) == 0 {
			l := &List{Kind: b.ListItem, Level: level, Items: []*ListItem{item}}
			out = append(out, l)
			open = append(open, l)
			continue
		}

		top := open[len(open)-1]
		if top.Level == level {
			top.Items = append(top.Items, item)
			continue
		}

		parent := top.Items[len(top.Items)-1]
		l := &List{Kind: b.ListItem, Level: level, Items: []*ListItem{item}}
		parent.Children = append(parent.Children, l)
		open = append(open, l)
	}
	return out
}
