package fees

import (
	"strings"
	"testing"

	"github.com/pkg/errors"
)

// fixtureScheduleRepo is a minimal in-memory ScheduleRepository for tests.
type fixtureScheduleRepo struct {
	entries []ScheduleEntry
	prices  map[string]float64
}

var _ ScheduleRepository = (*fixtureScheduleRepo)(nil)

func (r *fixtureScheduleRepo) GetEntry(grade GradeLevel, status BoardingStatus, withTransport bool) (ScheduleEntry, error) {
	for _, e := range r.entries {
		if e.GradeLevel == grade && e.BoardingStatus == status && e.HasTransport == withTransport {
			return e, nil
		}
	}
	return ScheduleEntry{}, ErrScheduleNotFound
}

func (r *fixtureScheduleRepo) AllEntries() ([]ScheduleEntry, error) { return r.entries, nil }

func (r *fixtureScheduleRepo) InKindUnitValue(itemType string) (float64, error) {
	for name, uv := range r.prices {
		if strings.EqualFold(name, itemType) {
			return uv, nil
		}
	}
	return 0, ErrUnknownItemType
}

func (r *fixtureScheduleRepo) InKindItems() (map[string]float64, error) { return r.prices, nil }

// fixtureLedgerRepo is a minimal in-memory LedgerRepository for tests.
type fixtureLedgerRepo struct {
	payments []Payment
}

var _ LedgerRepository = (*fixtureLedgerRepo)(nil)

func (r *fixtureLedgerRepo) RecordPayment(p Payment) (Payment, error) {
	r.payments = append(r.payments, p)
	return p, nil
}

func (r *fixtureLedgerRepo) GetPayment(id string) (Payment, error) {
	for _, p := range r.payments {
		if p.ID == id {
			return p, nil
		}
	}
	return Payment{}, ErrPaymentNotFound
}

func (r *fixtureLedgerRepo) PaymentsByStudent(studentID string) ([]Payment, error) {
	var out []Payment
	for _, p := range r.payments {
		if p.StudentID == studentID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fixtureLedgerRepo) DeletePayment(id string) error {
	for i, p := range r.payments {
		if p.ID == id {
			r.payments = append(r.payments[:i], r.payments[i+1:]...)
			return nil
		}
	}
	return ErrPaymentNotFound
}

var fixtureRoutes = map[string]int{"senetwo": 4500, "maraba": 5000, "songhor": 5500, "kamelilo": 6000}

func fixtureEntries() []ScheduleEntry {
	grade7Day := []TermlyComponent{
		{Name: "Tuition Fee", Amount: 35000},
		{Name: "Activity Fee", Amount: 4500},
		{Name: "Exam Fee", Amount: 3800},
		{Name: "Medical Levy", Amount: 2000},
		{Name: "Lunch Programme", Amount: 5000},
	}
	pp1Day := []TermlyComponent{
		{Name: "Tuition Fee", Amount: 12000},
		{Name: "Activity Fee", Amount: 2000},
		{Name: "Exam Fee", Amount: 1300},
		{Name: "Medical Levy", Amount: 1500},
		{Name: "Lunch Programme", Amount: 3500},
	}
	pp1Boarding := []TermlyComponent{
		{Name: "Tuition Fee", Amount: 15000},
		{Name: "Boarding Fee", Amount: 16000},
		{Name: "Activity Fee", Amount: 2000},
		{Name: "Exam Fee", Amount: 1300},
		{Name: "Medical Levy", Amount: 1500},
	}
	return []ScheduleEntry{
		{GradeLevel: Grade7, BoardingStatus: Day, TermlyComponents: grade7Day, TotalCalculated: 50300},
		{GradeLevel: Grade7, BoardingStatus: Day, HasTransport: true, TransportRoutes: fixtureRoutes, TermlyComponents: grade7Day, TotalCalculated: 50300},
		{GradeLevel: GradePP1, BoardingStatus: Day, TermlyComponents: pp1Day, TotalCalculated: 20300},
		{GradeLevel: GradePP1, BoardingStatus: Boarding, TermlyComponents: pp1Boarding, TotalCalculated: 35800},
	}
}

func newTestService() (*Service, *fixtureLedgerRepo) {
	ledger := &fixtureLedgerRepo{}
	schedule := &fixtureScheduleRepo{
		entries: fixtureEntries(),
		prices: map[string]float64{
			"Maize (90kg bag)":       4500,
			"Beans (90kg bag)":       7000,
			"Firewood (5-ton truck)": 35000,
			"Milk (litre)":           60,
		},
	}
	return NewService(schedule, ledger), ledger
}

func TestService_GetFeeStructure(t *testing.T) {
	svc, _ := newTestService()

	tests := []struct {
		name           string
		grade          GradeLevel
		status         BoardingStatus
		hasTransport   bool
		route          string
		wantFinalTotal int
		wantTransport  int
		wantRoutes     bool
		wantErr        error
	}{
		{
			name: "day with route", grade: Grade7, status: Day, hasTransport: true, route: "maraba",
			wantFinalTotal: 55300, wantTransport: 5000,
		},
		{
			name: "day without transport", grade: Grade7, status: Day,
			wantFinalTotal: 50300,
		},
		{
			name: "day transport no route returns choices", grade: Grade7, status: Day, hasTransport: true,
			wantFinalTotal: 50300, wantRoutes: true,
		},
		{
			name: "boarding ignores transport", grade: GradePP1, status: Boarding, hasTransport: true, route: "maraba",
			wantFinalTotal: 35800,
		},
		{
			name: "unknown route", grade: Grade7, status: Day, hasTransport: true, route: "kapsoit",
			wantErr: ErrInvalidRoute,
		},
		{
			name: "unknown grade", grade: GradeLevel("Grade 99"), status: Day,
			wantErr: ErrScheduleNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs, err := svc.GetFeeStructure(tt.grade, tt.status, tt.hasTransport, tt.route)
			if tt.wantErr != nil {
				if errors.Cause(err) != tt.wantErr {
					t.Fatalf("GetFeeStructure() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetFeeStructure() failed: %v", err)
			}
			if fs.FinalTotal != tt.wantFinalTotal {
				t.Errorf("FinalTotal = %d, want %d", fs.FinalTotal, tt.wantFinalTotal)
			}
			if fs.TransportFee != tt.wantTransport {
				t.Errorf("TransportFee = %d, want %d", fs.TransportFee, tt.wantTransport)
			}
			if tt.wantRoutes && len(fs.TransportRoutesAvailable) != 4 {
				t.Errorf("TransportRoutesAvailable = %v, want all 4 routes", fs.TransportRoutesAvailable)
			}
		})
	}
}

func TestScheduleEntry_TotalsMatchComponents(t *testing.T) {
	for _, e := range fixtureEntries() {
		if err := e.CheckIntegrity(); err != nil {
			t.Errorf("CheckIntegrity(%s/%s) failed: %v", e.GradeLevel, e.BoardingStatus, err)
		}
	}
}

func TestService_ComputeInKindValue(t *testing.T) {
	svc, _ := newTestService()

	tests := []struct {
		name     string
		itemType string
		quantity float64
		override []float64
		wantUnit float64
		wantAmt  float64
		wantErr  error
	}{
		{name: "fixed table", itemType: "Beans (90kg bag)", quantity: 2, wantUnit: 7000, wantAmt: 14000},
		{name: "case-insensitive lookup", itemType: "beans (90kg bag)", quantity: 1, wantUnit: 7000, wantAmt: 7000},
		{name: "market-rate override", itemType: "Beans (90kg bag)", quantity: 2, override: []float64{7250.5}, wantUnit: 7250.5, wantAmt: 14501},
		{name: "fractional quantity rounds to 2dp", itemType: "Maize (90kg bag)", quantity: 0.333, wantUnit: 4500, wantAmt: 1498.5},
		{name: "unknown item", itemType: "Charcoal (sack)", quantity: 1, wantErr: ErrUnknownItemType},
		{name: "zero quantity", itemType: "Beans (90kg bag)", quantity: 0, wantErr: ErrInvalidQuantity},
		{name: "negative quantity", itemType: "Beans (90kg bag)", quantity: -3, wantErr: ErrInvalidQuantity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			val, err := svc.ComputeInKindValue(tt.itemType, tt.quantity, tt.override...)
			if tt.wantErr != nil {
				if errors.Cause(err) != tt.wantErr {
					t.Fatalf("ComputeInKindValue() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ComputeInKindValue() failed: %v", err)
			}
			if val.UnitValue != tt.wantUnit {
				t.Errorf("UnitValue = %v, want %v", val.UnitValue, tt.wantUnit)
			}
			if val.Amount != tt.wantAmt {
				t.Errorf("Amount = %v, want %v", val.Amount, tt.wantAmt)
			}
		})
	}
}

func TestComputeBalance(t *testing.T) {
	tests := []struct {
		name      string
		totalFee  int
		payments  []Payment
		wantPaid  int
		wantRem   int
		wantErr   error
	}{
		{
			name:     "partial payments",
			totalFee: 55300,
			payments: []Payment{{Amount: 20000}, {Amount: 10000}},
			wantPaid: 30000, wantRem: 25300,
		},
		{
			name:     "overpayment is not clamped",
			totalFee: 50300,
			payments: []Payment{{Amount: 60000}},
			wantPaid: 60000, wantRem: -9700,
		},
		{
			name:     "no payments",
			totalFee: 50300,
			wantPaid: 0, wantRem: 50300,
		},
		{
			name:     "negative amount is a data error",
			totalFee: 50300,
			payments: []Payment{{Amount: 20000}, {Amount: -5000}},
			wantErr:  ErrInvalidPaymentData,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bal, err := ComputeBalance(tt.totalFee, tt.payments)
			if tt.wantErr != nil {
				if errors.Cause(err) != tt.wantErr {
					t.Fatalf("ComputeBalance() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ComputeBalance() failed: %v", err)
			}
			if bal.TotalPaid != tt.wantPaid {
				t.Errorf("TotalPaid = %d, want %d", bal.TotalPaid, tt.wantPaid)
			}
			if bal.RemainingBalance != tt.wantRem {
				t.Errorf("RemainingBalance = %d, want %d", bal.RemainingBalance, tt.wantRem)
			}
		})
	}
}

func TestService_RecordPayment(t *testing.T) {
	svc, _ := newTestService()

	p, err := svc.RecordPayment(NewPayment{
		StudentID: "std-001",
		Amount:    20000,
		Method:    MethodMpesa,
		Reference: "RJT45KL9XQ",
	}, "bursar@karoschool.ac.ke")
	if err != nil {
		t.Fatalf("RecordPayment() failed: %v", err)
	}
	if p.ID == "" {
		t.Error("RecordPayment() did not assign an ID")
	}
	if p.Amount != 20000 {
		t.Errorf("Amount = %d, want 20000", p.Amount)
	}

	// in-kind: amount derived from the valuation
	p, err = svc.RecordPayment(NewPayment{
		StudentID: "std-001",
		Method:    MethodInKind,
		ItemType:  "Beans (90kg bag)",
		Quantity:  2,
	}, "bursar@karoschool.ac.ke")
	if err != nil {
		t.Fatalf("RecordPayment() in-kind failed: %v", err)
	}
	if p.Amount != 14000 {
		t.Errorf("in-kind Amount = %d, want 14000", p.Amount)
	}
	if p.UnitValue != 7000 || p.Quantity != 2 {
		t.Errorf("in-kind valuation = %v x %v, want 7000 x 2", p.UnitValue, p.Quantity)
	}

	payments, err := svc.StudentPayments("std-001")
	if err != nil {
		t.Fatalf("StudentPayments() failed: %v", err)
	}
	if len(payments) != 2 {
		t.Fatalf("StudentPayments() = %d payments, want 2", len(payments))
	}
}

func TestService_RecordPayment_Invalid(t *testing.T) {
	svc, _ := newTestService()

	tests := []struct {
		name string
		np   NewPayment
	}{
		{name: "missing student", np: NewPayment{Amount: 100, Method: MethodCash}},
		{name: "unknown method", np: NewPayment{StudentID: "std-001", Amount: 100, Method: PaymentMethod("Barter")}},
		{name: "zero amount non in-kind", np: NewPayment{StudentID: "std-001", Method: MethodCash}},
		{name: "in-kind missing item", np: NewPayment{StudentID: "std-001", Method: MethodInKind, Quantity: 2}},
		{name: "in-kind bad quantity", np: NewPayment{StudentID: "std-001", Method: MethodInKind, ItemType: "Beans (90kg bag)"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.RecordPayment(tt.np, "bursar@karoschool.ac.ke"); err == nil {
				t.Error("RecordPayment() succeeded, want validation error")
			}
		})
	}
}

func TestService_VoidPayment(t *testing.T) {
	svc, _ := newTestService()

	p, err := svc.RecordPayment(NewPayment{
		StudentID: "std-002", Amount: 5000, Method: MethodCash,
	}, "bursar@karoschool.ac.ke")
	if err != nil {
		t.Fatalf("RecordPayment() failed: %v", err)
	}

	if err := svc.VoidPayment(p.ID); err != nil {
		t.Fatalf("VoidPayment() failed: %v", err)
	}
	if _, err := svc.GetPayment(p.ID); errors.Cause(err) != ErrPaymentNotFound {
		t.Errorf("GetPayment() after void error = %v, want ErrPaymentNotFound", err)
	}
}

func TestService_StudentBalance(t *testing.T) {
	svc, _ := newTestService()

	for _, amount := range []int{20000, 10000} {
		if _, err := svc.RecordPayment(NewPayment{
			StudentID: "std-003", Amount: amount, Method: MethodMpesa,
		}, "bursar@karoschool.ac.ke"); err != nil {
			t.Fatalf("RecordPayment() failed: %v", err)
		}
	}

	bal, err := svc.StudentBalance(StudentProfile{
		StudentID:      "std-003",
		GradeLevel:     Grade7,
		BoardingStatus: Day,
		HasTransport:   true,
		TransportRoute: "maraba",
	})
	if err != nil {
		t.Fatalf("StudentBalance() failed: %v", err)
	}
	if bal.Structure.FinalTotal != 55300 {
		t.Errorf("FinalTotal = %d, want 55300", bal.Structure.FinalTotal)
	}
	if bal.TotalPaid != 30000 {
		t.Errorf("TotalPaid = %d, want 30000", bal.TotalPaid)
	}
	if bal.RemainingBalance != 25300 {
		t.Errorf("RemainingBalance = %d, want 25300", bal.RemainingBalance)
	}
}
