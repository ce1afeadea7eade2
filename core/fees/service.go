package fees

import (
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/jkimani/karo/core"
)

var (
	// errors
	ErrScheduleNotFound   = errors.New("fee structure not configured for this grade/boarding combination")
	ErrInvalidRoute       = errors.New("transport route not offered for this fee structure")
	ErrUnknownItemType    = errors.New("unknown in-kind item type")
	ErrInvalidQuantity    = errors.New("quantity must be a positive number")
	ErrInvalidPaymentData = errors.New("invalid payment data")
	ErrPaymentNotFound    = errors.New("payment not found")
)

type (
	// ScheduleRepository sources the immutable fee reference data.
	ScheduleRepository interface {
		// GetEntry returns the schedule entry for (grade, status). When
		// withTransport is set (Day scholars only) the transport-route variant
		// is returned. Returns ErrScheduleNotFound when no entry matches.
		GetEntry(grade GradeLevel, status BoardingStatus, withTransport bool) (ScheduleEntry, error)
		AllEntries() ([]ScheduleEntry, error)
		// InKindUnitValue looks up itemType (case-insensitive) in the canonical
		// in-kind price table. Returns ErrUnknownItemType when absent.
		InKindUnitValue(itemType string) (float64, error)
		InKindItems() (map[string]float64, error)
	}

	// LedgerRepository is the payment ledger.
	LedgerRepository interface {
		RecordPayment(p Payment) (Payment, error)
		GetPayment(id string) (Payment, error)
		PaymentsByStudent(studentID string) ([]Payment, error)
		DeletePayment(id string) error
	}

	Service struct {
		schedule ScheduleRepository
		ledger   LedgerRepository
	}
)

func NewService(schedule ScheduleRepository, ledger LedgerRepository) *Service {
	return &Service{schedule: schedule, ledger: ledger}
}

// GetFeeStructure resolves the termly fee breakdown for the given profile.
// Transport is a Day-only concept: Boarding ignores hasTransport and route.
// When hasTransport is set without a route, the available routes are returned
// unselected for the caller to choose.
func (svc *Service) GetFeeStructure(grade GradeLevel, status BoardingStatus, hasTransport bool, route string) (FeeStructure, error) {
	if status == Boarding {
		hasTransport = false
		route = ""
	}

	entry, err := svc.schedule.GetEntry(grade, status, hasTransport)
	if err != nil {
		return FeeStructure{}, err
	}

	fs := FeeStructure{
		GradeLevel:       entry.GradeLevel,
		BoardingStatus:   entry.BoardingStatus,
		TermlyComponents: entry.TermlyComponents,
		TotalCalculated:  entry.TotalCalculated,
		FinalTotal:       entry.TotalCalculated,
	}
	if !hasTransport {
		return fs, nil
	}

	if route == "" {
		fs.TransportRoutesAvailable = entry.TransportRoutes
		return fs, nil
	}
	transportFee, ok := entry.TransportRoutes[route]
	if !ok {
		return FeeStructure{}, errors.Wrapf(ErrInvalidRoute, "route %q", route)
	}
	fs.TransportRoute = route
	fs.TransportFee = transportFee
	fs.FinalTotal = entry.TotalCalculated + transportFee
	return fs, nil
}

// ComputeInKindValue values an in-kind payment. The unit value comes from the
// canonical price table unless the caller supplies a market-rate override.
// The amount is rounded to 2 decimal places.
func (svc *Service) ComputeInKindValue(itemType string, quantity float64, overrideUnitValue ...float64) (InKindValue, error) {
	if quantity <= 0 || math.IsNaN(quantity) || math.IsInf(quantity, 0) {
		return InKindValue{}, ErrInvalidQuantity
	}

	var unitValue float64
	if len(overrideUnitValue) > 0 && overrideUnitValue[0] > 0 {
		unitValue = overrideUnitValue[0]
	} else {
		uv, err := svc.schedule.InKindUnitValue(itemType)
		if err != nil {
			return InKindValue{}, err
		}
		unitValue = uv
	}

	return InKindValue{
		ItemType:  itemType,
		UnitValue: unitValue,
		Quantity:  quantity,
		Amount:    round2(unitValue * quantity),
	}, nil
}

// InKindItems returns the canonical in-kind price table.
func (svc *Service) InKindItems() (map[string]float64, error) {
	return svc.schedule.InKindItems()
}

// AllEntries returns the full fee schedule.
func (svc *Service) AllEntries() ([]ScheduleEntry, error) {
	return svc.schedule.AllEntries()
}

// ComputeBalance applies a payment history to a total termly fee. Negative or
// non-finite payment amounts are a data error, not something to net out.
// Overpayment yields a negative remaining balance; callers display it as such.
func ComputeBalance(totalFee int, payments []Payment) (Balance, error) {
	var totalPaid int
	for _, p := range payments {
		if p.Amount < 0 {
			return Balance{}, errors.Wrapf(ErrInvalidPaymentData, "payment %s: negative amount %d", p.ID, p.Amount)
		}
		totalPaid += p.Amount
	}
	return Balance{
		TotalPaid:        totalPaid,
		RemainingBalance: totalFee - totalPaid,
	}, nil
}

// RecordPayment validates and writes a payment to the ledger. In-kind payments
// are valued first and credited at their monetary equivalent, rounded to the
// nearest shilling.
func (svc *Service) RecordPayment(np NewPayment, recordedBy string) (Payment, error) {
	if err := np.Validate(); err != nil {
		return Payment{}, err
	}

	p := Payment{
		ID:         uuid.New().String(),
		StudentID:  np.StudentID,
		Amount:     np.Amount,
		Method:     np.Method,
		Reference:  np.Reference,
		RecordedBy: recordedBy,
		CreatedAt:  time.Now().UTC(),
	}
	if np.Method == MethodInKind {
		var override []float64
		if np.OverrideUnitValue > 0 {
			override = append(override, np.OverrideUnitValue)
		}
		val, err := svc.ComputeInKindValue(np.ItemType, np.Quantity, override...)
		if err != nil {
			return Payment{}, err
		}
		p.ItemType = val.ItemType
		p.Quantity = val.Quantity
		p.UnitValue = val.UnitValue
		p.Amount = int(math.Round(val.Amount))
	}
	return svc.ledger.RecordPayment(p)
}

func (svc *Service) GetPayment(id string) (Payment, error) {
	return svc.ledger.GetPayment(id)
}

func (svc *Service) StudentPayments(studentID string) ([]Payment, error) {
	return svc.ledger.PaymentsByStudent(studentID)
}

// VoidPayment removes a payment from the ledger.
func (svc *Service) VoidPayment(id string) error {
	return svc.ledger.DeletePayment(id)
}

// StudentBalance combines the fee structure, the student's payment history and
// the balance derivation into one position.
func (svc *Service) StudentBalance(profile StudentProfile) (StudentBalance, error) {
	profile.StudentID = core.CleanString(profile.StudentID)
	if err := core.Validate.Struct(profile); err != nil {
		return StudentBalance{}, err
	}

	fs, err := svc.GetFeeStructure(profile.GradeLevel, profile.BoardingStatus, profile.HasTransport, profile.TransportRoute)
	if err != nil {
		return StudentBalance{}, err
	}
	payments, err := svc.StudentPayments(profile.StudentID)
	if err != nil {
		return StudentBalance{}, errors.Wrap(err, "querying student payments")
	}
	bal, err := ComputeBalance(fs.FinalTotal, payments)
	if err != nil {
		return StudentBalance{}, err
	}
	return StudentBalance{
		StudentID: profile.StudentID,
		Structure: fs,
		Balance:   bal,
	}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
