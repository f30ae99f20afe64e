package reply

import "dotori/app/service/knowledge"

// Canned user-facing strings. Internal errors are never shown to the
// customer, they always receive one of these instead.
const (
	MsgCannotUnderstand = "죄송합니다. 메시지를 이해하지 못했습니다. 다시 한 번 말씀해 주세요."
	MsgTemporaryError   = "죄송합니다. 일시적인 오류가 발생했습니다. 잠시 후 다시 시도해주세요."
)

// Context carries the records matched for the current turn. Field
// order fixes the key order of the serialized block: product, size,
// faq. A nil *Context means nothing relevant was found.
type Context struct {
	Product *knowledge.Product   `json:"product,omitempty"`
	Size    *knowledge.SizeEntry `json:"size,omitempty"`
	Faq     *knowledge.FaqEntry  `json:"faq,omitempty"`
}

func (c *Context) Empty() bool {
	return c == nil || (c.Product == nil && c.Size == nil && c.Faq == nil)
}
