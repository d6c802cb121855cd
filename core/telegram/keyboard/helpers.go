// Package keyboard builds reply and inline keyboards.
package keyboard

import tele "gopkg.in/telebot.v4"

// InlineBtn describes an inline callback button.
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
}

// RemoveKeyboard returns a markup that hides the reply keyboard.
func RemoveKeyboard() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{RemoveKeyboard: true}
}

// ReplyButtons builds a resized reply keyboard from rows of labels.
func ReplyButtons(rows ...[]string) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{ResizeKeyboard: true}
	keyboard := make([]tele.Row, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tele.Btn, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, markup.Text(label))
		}
		keyboard = append(keyboard, markup.Row(buttons...))
	}
	markup.Reply(keyboard...)
	return markup
}

// InlineButtonsRows builds an inline keyboard from rows of buttons. It
// returns nil for no rows.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	if len(rows) == 0 {
		return nil
	}
	markup := &tele.ReplyMarkup{}
	inline := make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		r := make([]tele.InlineButton, 0, len(row))
		for _, btn := range row {
			r = append(r, *markup.Data(btn.Text, btn.Unique, btn.Data).Inline())
		}
		inline = append(inline, r)
	}
	markup.InlineKeyboard = inline
	return markup
}

// Chunk splits buttons into rows of at most n.
func Chunk(buttons []InlineBtn, n int) [][]InlineBtn {
	if n <= 0 {
		n = 1
	}
	rows := make([][]InlineBtn, 0, (len(buttons)+n-1)/n)
	for i := 0; i < len(buttons); i += n {
		rows = append(rows, buttons[i:min(i+n, len(buttons))])
	}
	return rows
}
