package domain

// ViolationReason is the closed set of reasons a cart fails validation.
type ViolationReason string

const (
	ReasonEmptyCart         ViolationReason = "EmptyCart"
	ReasonProductMissing    ViolationReason = "ProductMissing"
	ReasonInsufficientStock ViolationReason = "InsufficientStock"
	ReasonInvalidSize       ViolationReason = "InvalidSize"
	ReasonInvalidColor      ViolationReason = "InvalidColor"
)

type Violation struct {
	ProductID string          `json:"productId,omitempty"`
	Reason    ViolationReason `json:"reason"`
	Message   string          `json:"message"`
	Available *int            `json:"available,omitempty"`
}

// ValidationVerdict is valid exactly when it carries no violations.
type ValidationVerdict struct {
	IsValid    bool        `json:"isValid"`
	Violations []Violation `json:"violations"`
}

func NewVerdict(violations []Violation) ValidationVerdict {
	if violations == nil {
		violations = []Violation{}
	}
	return ValidationVerdict{IsValid: len(violations) == 0, Violations: violations}
}

// Messages returns the violation messages in order.
func (v ValidationVerdict) Messages() []string {
	out := make([]string, 0, len(v.Violations))
	for _, vi := range v.Violations {
		out = append(out, vi.Message)
	}
	return out
}
