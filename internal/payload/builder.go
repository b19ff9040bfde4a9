package payload

// ApsKey is the top-level key that carries the service dictionary.
const ApsKey = "aps"

var emptyDocument = []byte("{}")

// Build folds items into the notification document. Later items overwrite
// earlier ones that target the same key.
func Build(items []Item) *Object {
	doc := NewObject()
	aps := NewObject()
	alert := NewObject()
	var (
		body    string
		hasBody bool
	)

	for _, item := range items {
		switch item.kind {
		case itemAlertBody:
			body, hasBody = item.text, true
		case itemAlertTitle:
			alert.Set("title", String(item.text))
		case itemAlertTitleLoc:
			alert.Set("title-loc-key", String(item.text))
			if item.args != nil {
				alert.Set("title-loc-args", Strings(item.args...))
			}
		case itemAlertActionLoc:
			alert.Set("action-loc-key", String(item.text))
		case itemAlertLoc:
			alert.Set("loc-key", String(item.text))
			if item.args != nil {
				alert.Set("loc-args", Strings(item.args...))
			}
		case itemAlertLaunchImage:
			alert.Set("launch-image", String(item.text))
		case itemBadge:
			aps.Set("badge", Int(int64(item.count)))
		case itemSound:
			aps.Set("sound", String(item.text))
		case itemContentAvailable:
			aps.Set("content-available", Int(1))
		case itemCategory:
			aps.Set("category", String(item.text))
		case itemThreadID:
			aps.Set("thread-id", String(item.text))
		case itemMutableContent:
			aps.Set("mutable-content", Int(1))
		case itemCustom:
			doc.Set(item.text, item.value)
		}
	}

	switch {
	case alert.Len() == 0 && hasBody:
		aps.Set("alert", String(body))
	case alert.Len() > 0:
		if hasBody {
			alert.Set("body", String(body))
		}
		aps.Set("alert", ObjectValue(alert))
	}
	doc.Set(ApsKey, ObjectValue(aps))
	return doc
}

// Render returns the serialized document for items. A document that cannot be
// serialized renders as "{}".
func Render(items []Item) []byte {
	data, err := Build(items).MarshalJSON()
	if err != nil {
		out := make([]byte, len(emptyDocument))
		copy(out, emptyDocument)
		return out
	}
	return data
}
