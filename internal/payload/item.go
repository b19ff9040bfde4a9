package payload

type itemKind uint8

const (
	itemAlertBody itemKind = iota + 1
	itemAlertTitle
	itemAlertTitleLoc
	itemAlertActionLoc
	itemAlertLoc
	itemAlertLaunchImage
	itemBadge
	itemSound
	itemContentAvailable
	itemCategory
	itemThreadID
	itemMutableContent
	itemCustom
)

// Item is one notification setting. Items are built with the constructors in
// this file and are immutable once created.
type Item struct {
	kind  itemKind
	text  string
	args  []string
	count int
	value Value
}

// AlertBody sets the alert text.
func AlertBody(text string) Item { return Item{kind: itemAlertBody, text: text} }

// AlertTitle sets the alert title.
func AlertTitle(text string) Item { return Item{kind: itemAlertTitle, text: text} }

// AlertTitleLoc sets title-loc-key and, when args are given, title-loc-args.
func AlertTitleLoc(key string, args ...string) Item {
	return Item{kind: itemAlertTitleLoc, text: key, args: copyStrings(args)}
}

// AlertActionLoc sets action-loc-key.
func AlertActionLoc(key string) Item { return Item{kind: itemAlertActionLoc, text: key} }

// AlertLoc sets loc-key and, when args are given, loc-args.
func AlertLoc(key string, args ...string) Item {
	return Item{kind: itemAlertLoc, text: key, args: copyStrings(args)}
}

// AlertLaunchImage sets launch-image.
func AlertLaunchImage(name string) Item { return Item{kind: itemAlertLaunchImage, text: name} }

// Badge sets the app icon badge count.
func Badge(count int) Item { return Item{kind: itemBadge, count: count} }

// Sound names the sound to play.
func Sound(name string) Item { return Item{kind: itemSound, text: name} }

// ContentAvailable marks the notification as a background update.
func ContentAvailable() Item { return Item{kind: itemContentAvailable} }

// Category sets the notification category.
func Category(name string) Item { return Item{kind: itemCategory, text: name} }

// ThreadID groups notifications into a thread.
func ThreadID(id string) Item { return Item{kind: itemThreadID, text: id} }

// MutableContent lets a notification service extension modify the content.
func MutableContent() Item { return Item{kind: itemMutableContent} }

// Custom adds a top-level key next to "aps".
func Custom(key string, value Value) Item { return Item{kind: itemCustom, text: key, value: value} }

func copyStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
