package hotkey

import "golang.design/x/hotkey"

// X11 reports Alt as Mod1 and Super as Mod4 on every common layout.
var modifiers = map[string]hotkey.Modifier{
	"ctrl":  hotkey.ModCtrl,
	"shift": hotkey.ModShift,
	"alt":   hotkey.Mod1,
	"super": hotkey.Mod4,
}
