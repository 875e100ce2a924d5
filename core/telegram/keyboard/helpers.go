package keyboard

import tele "gopkg.in/telebot.v4"

// InlineBtn describes a convenience wrapper for inline button properties.
type InlineBtn struct {
	Text   string
	Unique string
	Data   string
}

// InlineButtonsRows builds an inline keyboard from rows of InlineBtn.
func InlineButtonsRows(rows ...[]InlineBtn) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	inline := make([][]tele.InlineButton, len(rows))
	for i, row := range rows {
		r := make([]tele.InlineButton, len(row))
		for j, btn := range row {
			r[j] = *markup.Data(btn.Text, btn.Unique, btn.Data).Inline()
		}
		inline[i] = r
	}
	markup.InlineKeyboard = inline
	return markup
}

// YesNo builds a single-row inline keyboard with Yes/No buttons sharing one
// callback key; the answer travels in the payload.
func YesNo(unique string) *tele.ReplyMarkup {
	return InlineButtonsRows([]InlineBtn{
		{Text: "✅ Yes", Unique: unique, Data: "yes"},
		{Text: "❌ No", Unique: unique, Data: "no"},
	})
}
