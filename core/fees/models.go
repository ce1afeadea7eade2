package fees

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/jkimani/karo/core"
)

// GradeLevel is a level in the 2-6-3-3 curriculum, PP1 through Grade 12.
type GradeLevel string

const (
	GradePP1 GradeLevel = "PP1"
	GradePP2 GradeLevel = "PP2"
	Grade1   GradeLevel = "Grade 1"
	Grade2   GradeLevel = "Grade 2"
	Grade3   GradeLevel = "Grade 3"
	Grade4   GradeLevel = "Grade 4"
	Grade5   GradeLevel = "Grade 5"
	Grade6   GradeLevel = "Grade 6"
	Grade7   GradeLevel = "Grade 7"
	Grade8   GradeLevel = "Grade 8"
	Grade9   GradeLevel = "Grade 9"
	Grade10  GradeLevel = "Grade 10"
	Grade11  GradeLevel = "Grade 11"
	Grade12  GradeLevel = "Grade 12"
)

// GradeLevels lists all grade levels in school order.
var GradeLevels = []GradeLevel{
	GradePP1, GradePP2,
	Grade1, Grade2, Grade3, Grade4, Grade5, Grade6,
	Grade7, Grade8, Grade9,
	Grade10, Grade11, Grade12,
}

func (g GradeLevel) IsValid() bool {
	for _, lvl := range GradeLevels {
		if g == lvl {
			return true
		}
	}
	return false
}

// BoardingStatus says whether a student resides at the school or commutes.
type BoardingStatus string

const (
	Day      BoardingStatus = "Day"
	Boarding BoardingStatus = "Boarding"
)

func (b BoardingStatus) IsValid() bool {
	return b == Day || b == Boarding
}

// TermlyComponent is one named line item contributing to a term's total fee.
// Order is display-relevant.
type TermlyComponent struct {
	Name   string `json:"name"`
	Amount int    `json:"amount"` // KES
}

// ScheduleEntry is one row of the canonical fee table. For a (grade, boarding)
// pair there is a base entry and, for Day scholars only, a variant carrying the
// transport routes. Entries are immutable reference data loaded at startup.
type ScheduleEntry struct {
	GradeLevel       GradeLevel        `json:"grade_level"`
	BoardingStatus   BoardingStatus    `json:"boarding_status"`
	HasTransport     bool              `json:"has_transport"`
	TransportRoutes  map[string]int    `json:"transport_routes,omitempty"` // route name -> flat termly fee (KES)
	TermlyComponents []TermlyComponent `json:"termly_components"`
	TotalCalculated  int               `json:"total_calculated"` // KES; transport NOT pre-included
}

// ComponentsTotal sums the entry's termly components.
func (e ScheduleEntry) ComponentsTotal() int {
	var total int
	for _, c := range e.TermlyComponents {
		total += c.Amount
	}
	return total
}

// CheckIntegrity verifies the entry's invariants; loaders call it on every row.
func (e ScheduleEntry) CheckIntegrity() error {
	if !e.GradeLevel.IsValid() {
		return errors.Errorf("unknown grade level %q", e.GradeLevel)
	}
	if !e.BoardingStatus.IsValid() {
		return errors.Errorf("unknown boarding status %q", e.BoardingStatus)
	}
	if e.BoardingStatus == Boarding && (e.HasTransport || len(e.TransportRoutes) > 0) {
		return errors.Errorf("%s %s: boarding entries cannot carry transport routes", e.GradeLevel, e.BoardingStatus)
	}
	if e.HasTransport && len(e.TransportRoutes) == 0 {
		return errors.Errorf("%s %s: transport entry has no routes", e.GradeLevel, e.BoardingStatus)
	}
	if got := e.ComponentsTotal(); got != e.TotalCalculated {
		return errors.Errorf("%s %s: total_calculated %d != components sum %d",
			e.GradeLevel, e.BoardingStatus, e.TotalCalculated, got)
	}
	return nil
}

// FeeStructure is the resolved fee breakdown for a student profile.
type FeeStructure struct {
	GradeLevel       GradeLevel        `json:"grade_level"`
	BoardingStatus   BoardingStatus    `json:"boarding_status"`
	TermlyComponents []TermlyComponent `json:"termly_components"`
	TotalCalculated  int               `json:"total_calculated"`
	TransportRoute   string            `json:"transport_route,omitempty"`
	TransportFee     int               `json:"transport_fee,omitempty"`
	FinalTotal       int               `json:"final_total"`
	// TransportRoutesAvailable is set when transport was requested but no route
	// chosen yet, so the caller can offer the choice.
	TransportRoutesAvailable map[string]int `json:"transport_routes_available,omitempty"`
}

// PaymentMethod is the closed set of accepted settlement methods.
type PaymentMethod string

const (
	MethodMpesa        PaymentMethod = "MPESA"
	MethodBankTransfer PaymentMethod = "Bank Transfer"
	MethodCash         PaymentMethod = "Cash"
	MethodInKind       PaymentMethod = "In-Kind"
	MethodCheque       PaymentMethod = "Cheque"
)

var PaymentMethods = []PaymentMethod{MethodMpesa, MethodBankTransfer, MethodCash, MethodInKind, MethodCheque}

func (m PaymentMethod) IsValid() bool {
	for _, pm := range PaymentMethods {
		if m == pm {
			return true
		}
	}
	return false
}

// Payment is one settled amount credited toward a student's balance.
type Payment struct {
	ID        string        `json:"id"`
	StudentID string        `json:"student_id"`
	Amount    int           `json:"amount"` // KES
	Method    PaymentMethod `json:"method"`
	Reference string        `json:"reference,omitempty"` // e.g. M-PESA transaction code, cheque number

	// in-kind details, set only when Method == MethodInKind
	ItemType  string  `json:"item_type,omitempty"`
	Quantity  float64 `json:"quantity,omitempty"`
	UnitValue float64 `json:"unit_value,omitempty"` // KES per unit

	RecordedBy string    `json:"recorded_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"` // UTC
}

// NewPayment contains information needed to record a new Payment.
type NewPayment struct {
	StudentID string        `json:"student_id" validate:"required"`
	Amount    int           `json:"amount"`
	Method    PaymentMethod `json:"method" validate:"required,paymethod"`
	Reference string        `json:"reference"`

	// in-kind only; Amount is derived from the valuation when set
	ItemType          string  `json:"item_type" validate:"required_if_inkind"`
	Quantity          float64 `json:"quantity"`
	OverrideUnitValue float64 `json:"override_unit_value"` // market-rate override, optional
}

func (np *NewPayment) Validate() error {
	np.StudentID = core.CleanString(np.StudentID)
	np.Reference = core.CleanString(np.Reference)
	np.ItemType = core.CleanString(np.ItemType)

	if err := core.Validate.Struct(np); err != nil {
		return err
	}
	if np.Method != MethodInKind && np.Amount <= 0 {
		return core.NewValidationError(ErrInvalidPaymentData,
			core.FieldError{Field: "amount", Error: "a positive amount is required"})
	}
	return nil
}

// InKindValue is the monetary valuation of an in-kind (produce) payment.
type InKindValue struct {
	ItemType  string  `json:"item_type"`
	UnitValue float64 `json:"unit_value"` // KES per unit
	Quantity  float64 `json:"quantity"`
	Amount    float64 `json:"amount"` // KES, rounded to 2 decimal places
}

// Balance is the payments-applied position against a total termly fee.
type Balance struct {
	TotalPaid int `json:"total_paid"`
	// RemainingBalance may be negative: overpayment is reported, never clamped.
	RemainingBalance int `json:"remaining_balance"`
}

// StudentProfile carries the schedule-relevant attributes of a student record.
// The student register itself lives with the caller.
type StudentProfile struct {
	StudentID      string         `json:"student_id" validate:"required"`
	GradeLevel     GradeLevel     `json:"grade_level" validate:"required,gradelevel"`
	BoardingStatus BoardingStatus `json:"boarding_status" validate:"required,boardingstatus"`
	HasTransport   bool           `json:"has_transport"`
	TransportRoute string         `json:"transport_route"`
}

// StudentBalance is a student's full fee position: resolved structure, ledger
// total and remaining balance.
type StudentBalance struct {
	StudentID string       `json:"student_id"`
	Structure FeeStructure `json:"structure"`
	Balance
}

var (
	payMethodTag      = "paymethod"
	payMethodText     = "payment method must be one of: MPESA, Bank Transfer, Cash, In-Kind, Cheque"
	inKindItemTag     = "required_if_inkind"
	inKindItemText    = "item type is required for in-kind payments"
	gradeLevelTag     = "gradelevel"
	gradeLevelText    = "unknown grade level"
	boardingStatusTag = "boardingstatus"
	boardingStatusTxt = "boarding status must be Day or Boarding"
)

func init() {
	_ = core.Validate.RegisterValidation(payMethodTag, func(fl validator.FieldLevel) bool {
		return PaymentMethod(fl.Field().String()).IsValid()
	})
	core.RegisterCustomTranslation(payMethodTag, payMethodText)

	_ = core.Validate.RegisterValidation(inKindItemTag, func(fl validator.FieldLevel) bool {
		np, ok := fl.Parent().Interface().(NewPayment)
		if !ok {
			if npp, okp := fl.Parent().Interface().(*NewPayment); okp {
				np = *npp
			} else {
				return true
			}
		}
		if np.Method != MethodInKind {
			return true
		}
		return fl.Field().String() != ""
	})
	core.RegisterCustomTranslation(inKindItemTag, inKindItemText)

	_ = core.Validate.RegisterValidation(gradeLevelTag, func(fl validator.FieldLevel) bool {
		return GradeLevel(fl.Field().String()).IsValid()
	})
	core.RegisterCustomTranslation(gradeLevelTag, gradeLevelText)

	_ = core.Validate.RegisterValidation(boardingStatusTag, func(fl validator.FieldLevel) bool {
		return BoardingStatus(fl.Field().String()).IsValid()
	})
	core.RegisterCustomTranslation(boardingStatusTag, boardingStatusTxt)
}
