package lookup

import (
	"dotori/app/service/knowledge"
	"strings"

	"github.com/elliotchance/pie/v2"
	"github.com/samber/do"
)

// Service runs case-insensitive substring scans over the knowledge
// tables. The customer message is split into whitespace tokens and a
// row matches when any token occurs in a searchable field. Scans are
// first-match in table order, there is no ranking.
type Service struct {
	knowledgeSvc *knowledge.Service
}

func New(di *do.Injector) (*Service, error) {
	return NewService(do.MustInvoke[*knowledge.Service](di)), nil
}

func NewService(knowledgeSvc *knowledge.Service) *Service {
	return &Service{
		knowledgeSvc: knowledgeSvc,
	}
}

// FindProduct matches the query against product code and name.
func (s *Service) FindProduct(query string) *knowledge.Product {
	tokens := queryTokens(query)
	if len(tokens) == 0 {
		return nil
	}

	products := s.knowledgeSvc.Products()

	index := pie.FindFirstUsing(products, func(p knowledge.Product) bool {
		return matches(p.Code, tokens) || matches(p.Name, tokens)
	})
	if index < 0 {
		return nil
	}

	return &products[index]
}

// FindSizeInfo matches the query against the brand label only.
func (s *Service) FindSizeInfo(query string) *knowledge.SizeEntry {
	tokens := queryTokens(query)
	if len(tokens) == 0 {
		return nil
	}

	sizes := s.knowledgeSvc.Sizes()

	index := pie.FindFirstUsing(sizes, func(e knowledge.SizeEntry) bool {
		return matches(e.Brand, tokens)
	})
	if index < 0 {
		return nil
	}

	return &sizes[index]
}

// FindFaq matches the query against category and question text.
func (s *Service) FindFaq(query string) *knowledge.FaqEntry {
	tokens := queryTokens(query)
	if len(tokens) == 0 {
		return nil
	}

	faqs := s.knowledgeSvc.Faqs()

	index := pie.FindFirstUsing(faqs, func(e knowledge.FaqEntry) bool {
		return matches(e.Category, tokens) || matches(e.Question, tokens)
	})
	if index < 0 {
		return nil
	}

	return &faqs[index]
}

// queryTokens folds and splits the query. An empty or blank query
// yields no tokens and therefore never matches: an empty substring
// would trivially match every row.
func queryTokens(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

func matches(field string, tokens []string) bool {
	folded := strings.ToLower(field)

	for _, token := range tokens {
		if strings.Contains(folded, token) {
			return true
		}
	}

	return false
}
