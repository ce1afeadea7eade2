package echoapi

import (
	"github.com/jkimani/karo/core"
	"github.com/jkimani/karo/core/fees"
)

type (
	LoginRequest struct {
		Identity string `json:"identity" validate:"required"` // phone number or email
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	PasswordResetRequest struct {
		Identity string `json:"identity" validate:"required"` // phone number or email
	}

	PhoneVerifyRequest struct {
		Code string `json:"code" validate:"required,len=6,numeric"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	DestroyMultipleRequest struct {
		IDs []string `query:"id"`
	}

	FeeStructureRequest struct {
		GradeLevel     string `query:"grade_level" validate:"required,gradelevel"`
		BoardingStatus string `query:"boarding_status" validate:"required,boardingstatus"`
		HasTransport   bool   `query:"has_transport"`
		Route          string `query:"route"`
	}

	InKindValueRequest struct {
		ItemType          string  `json:"item_type" validate:"required"`
		Quantity          float64 `json:"quantity"`
		OverrideUnitValue float64 `json:"override_unit_value"`
	}

	BalanceRequest struct {
		TotalFee int            `json:"total_fee" validate:"min=0"`
		Payments []fees.Payment `json:"payments"`
	}

	StudentBalanceRequest struct {
		GradeLevel     string `query:"grade_level"`
		BoardingStatus string `query:"boarding_status"`
		HasTransport   bool   `query:"has_transport"`
		Route          string `query:"route"`
	}
)

func (lr *LoginRequest) Validate() error {
	lr.Identity = core.CleanString(lr.Identity, true /* lower */)
	return core.Validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate() error {
	pr.Identity = core.CleanString(pr.Identity, true /* lower */)
	return core.Validate.Struct(pr)
}

func (pv *PhoneVerifyRequest) Validate() error {
	pv.Code = core.CleanString(pv.Code)
	return core.Validate.Struct(pv)
}

func (fr *FeeStructureRequest) Validate() error {
	fr.GradeLevel = core.CleanString(fr.GradeLevel)
	fr.Route = core.CleanString(fr.Route)
	return core.Validate.Struct(fr)
}

func (ir *InKindValueRequest) Validate() error {
	ir.ItemType = core.CleanString(ir.ItemType)
	return core.Validate.Struct(ir)
}

func (br *BalanceRequest) Validate() error {
	return core.Validate.Struct(br)
}
