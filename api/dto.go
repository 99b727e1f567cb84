/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's forest and service results from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Period criteria:
    CriteriaRequest (embedded in every period-based request)

  Reports:
    ClientSummaryRequest, ForestDTO (summary_dto.go)
    ComparisonRequest, ComparisonDTO
    DashboardRequest, ClientTotalDTO, PeriodClientsDTO, ClientGraphDTO
    SearchRequest, SearchResultDTO

  Writes:
    UploadRequest, RecordDTO, IngestResultDTO, UpdateShiftsRequest, RateDTO

ROUNDING:
  Money and days are rounded to two places here, on the way out. Nothing
  upstream rounds. The client summary rounds employee shift amounts and
  sums them upward so rounded children add up to their parent.

VALIDATION:
  Struct tags are checked with go-playground/validator before the service is
  called (see validation.go). The period resolver still owns the semantic
  checks (ranges, future months, conflicting forms).

SEE ALSO:
  - handlers.go: Uses these types
  - service/: Result types converted here
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/shift-allowance/allowance"
	"github.com/warp/shift-allowance/service"
	"github.com/warp/shift-allowance/store/sqlite"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CriteriaRequest selects periods. Use exactly one form, or none for the
// latest month with data.
type CriteriaRequest struct {
	StartMonth       string   `json:"start_month" validate:"omitempty,datetime=2006-01"`
	EndMonth         string   `json:"end_month" validate:"omitempty,datetime=2006-01"`
	SelectedYear     int      `json:"selected_year" validate:"gte=0"`
	SelectedMonths   []string `json:"selected_months" validate:"omitempty,dive,required"`
	SelectedQuarters []string `json:"selected_quarters" validate:"omitempty,dive,required"`
}

func (c CriteriaRequest) criteria() allowance.Criteria {
	return allowance.Criteria{
		StartMonth:       c.StartMonth,
		EndMonth:         c.EndMonth,
		SelectedYear:     c.SelectedYear,
		SelectedMonths:   c.SelectedMonths,
		SelectedQuarters: c.SelectedQuarters,
	}
}

type ClientSummaryRequest struct {
	CriteriaRequest
	// Clients is "ALL" or {"client": ["dept", ...]}.
	Clients    allowance.GroupFilter `json:"clients"`
	WithDeltas bool                  `json:"with_deltas"`
	// Format is used by the download endpoint only: xlsx, csv or pdf.
	Format string `json:"format" validate:"omitempty,oneof=xlsx csv pdf XLSX CSV PDF"`
}

type ComparisonRequest struct {
	ClientName string `json:"client_name" validate:"required"`
	StartMonth string `json:"start_month" validate:"omitempty,datetime=2006-01"`
	EndMonth   string `json:"end_month" validate:"omitempty,datetime=2006-01"`
}

type DashboardRequest struct {
	CriteriaRequest
	Top int `json:"top" validate:"gte=0"`
}

type SearchRequest struct {
	EmployeeID     string `json:"emp_id"`
	EmployeeName   string `json:"emp_name"`
	AccountManager string `json:"account_manager"`
	Department     string `json:"department"`
	Client         string `json:"client"`
	StartMonth     string `json:"start_month" validate:"omitempty,datetime=2006-01"`
	EndMonth       string `json:"end_month" validate:"omitempty,datetime=2006-01"`
	Start          int    `json:"start" validate:"gte=0"`
	Limit          int    `json:"limit" validate:"gte=0,lte=500"`
}

// RecordDTO is one allowance sheet row. Shifts maps a shift label to days.
type RecordDTO struct {
	EmployeeID     string                     `json:"emp_id" validate:"required"`
	EmployeeName   string                     `json:"emp_name"`
	Grade          string                     `json:"grade"`
	Client         string                     `json:"client"`
	Department     string                     `json:"department"`
	Project        string                     `json:"project"`
	AccountManager string                     `json:"account_manager"`
	DurationMonth  string                     `json:"duration_month" validate:"required,datetime=2006-01"`
	PayrollMonth   string                     `json:"payroll_month" validate:"required,datetime=2006-01"`
	Shifts         map[string]decimal.Decimal `json:"shifts" validate:"required,min=1"`
}

type UploadRequest struct {
	Source  string      `json:"source"`
	Records []RecordDTO `json:"records" validate:"required,min=1,dive"`
}

type UpdateShiftsRequest struct {
	Shifts map[string]decimal.Decimal `json:"shifts" validate:"required,min=1"`
}

// RateDTO is used both to set and to list rates.
type RateDTO struct {
	ShiftType   string          `json:"shift_type" validate:"required"`
	PayrollYear int             `json:"payroll_year" validate:"required,gt=0"`
	Amount      decimal.Decimal `json:"amount"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

type ShiftAmountsDTO struct {
	A     decimal.Decimal `json:"A"`
	B     decimal.Decimal `json:"B"`
	C     decimal.Decimal `json:"C"`
	Prime decimal.Decimal `json:"PRIME"`
}

type TotalsDTO struct {
	Allowance      ShiftAmountsDTO `json:"allowance"`
	Days           ShiftAmountsDTO `json:"days"`
	TotalAllowance decimal.Decimal `json:"total_allowance"`
	TotalDays      decimal.Decimal `json:"total_days"`
	HeadCount      int             `json:"head_count"`
}

type EmployeeDTO struct {
	EmployeeID     string `json:"emp_id"`
	EmployeeName   string `json:"emp_name"`
	AccountManager string `json:"account_manager,omitempty"`
	TotalsDTO
}

type GroupTotalDTO struct {
	TotalAllowance decimal.Decimal `json:"total_allowance"`
	HeadCount      int             `json:"head_count"`
}

type DepartmentComparisonDTO struct {
	Department string `json:"department"`
	GroupTotalDTO
	Diff      decimal.Decimal `json:"diff"`
	Employees []EmployeeDTO   `json:"employees"`
}

type MonthComparisonDTO struct {
	Month         string                    `json:"month"`
	Message       string                    `json:"message,omitempty"`
	Departments   []DepartmentComparisonDTO `json:"departments"`
	VerticalTotal GroupTotalDTO             `json:"vertical_total"`
}

type ComparisonDTO struct {
	Client          string                   `json:"client"`
	ClientCode      string                   `json:"client_code,omitempty"`
	Months          []MonthComparisonDTO     `json:"months"`
	HorizontalTotal map[string]GroupTotalDTO `json:"horizontal_total"`
}

type ClientTotalDTO struct {
	Client         string           `json:"client"`
	ClientCode     string           `json:"client_code,omitempty"`
	HeadCount      int              `json:"head_count"`
	Days           *ShiftAmountsDTO `json:"days,omitempty"`
	TotalDays      decimal.Decimal  `json:"total_days"`
	TotalAllowance decimal.Decimal  `json:"total_allowance"`
}

type PeriodClientsDTO struct {
	Period  string           `json:"period"`
	Message string           `json:"message,omitempty"`
	Clients []ClientTotalDTO `json:"clients"`
}

type MonthTotalDTO struct {
	Month string          `json:"month"`
	Key   string          `json:"key"`
	Total decimal.Decimal `json:"total"`
}

type ClientGraphDTO struct {
	Client     string          `json:"client"`
	ClientCode string          `json:"client_code,omitempty"`
	Year       int             `json:"year"`
	Months     []MonthTotalDTO `json:"months"`
}

type ClientDepartmentsDTO struct {
	Client      string   `json:"client"`
	Departments []string `json:"departments"`
}

type SearchRowDTO struct {
	EmployeeID     string                     `json:"emp_id"`
	EmployeeName   string                     `json:"emp_name"`
	Grade          string                     `json:"grade,omitempty"`
	Client         string                     `json:"client"`
	ClientCode     string                     `json:"client_code,omitempty"`
	Department     string                     `json:"department"`
	Project        string                     `json:"project,omitempty"`
	AccountManager string                     `json:"account_manager,omitempty"`
	DurationMonth  string                     `json:"duration_month"`
	PayrollMonth   string                     `json:"payroll_month"`
	ShiftDays      map[string]decimal.Decimal `json:"shift_days"`
	TotalAllowance decimal.Decimal            `json:"total_allowance"`
}

type SearchResultDTO struct {
	TotalRecords   int                        `json:"total_records"`
	Months         []string                   `json:"months"`
	ShiftDays      map[string]decimal.Decimal `json:"shift_details"`
	HeadCount      int                        `json:"head_count"`
	TotalAllowance decimal.Decimal            `json:"total_allowance"`
	Employees      []SearchRowDTO             `json:"employees"`
}

type IngestResultDTO struct {
	BatchID     string `json:"batch_id"`
	Inserted    int    `json:"inserted"`
	Replaced    int    `json:"replaced"`
	Invalidated bool   `json:"latest_month_invalidated"`
}

type UploadDTO struct {
	ID          string `json:"id"`
	Source      string `json:"source"`
	RecordCount int    `json:"record_count"`
	Inserted    int    `json:"inserted"`
	Replaced    int    `json:"replaced"`
	UploadedAt  string `json:"uploaded_at"`
}

type ShiftDetailDTO struct {
	ShiftType string          `json:"shift_type"`
	Days      decimal.Decimal `json:"days"`
	Rate      decimal.Decimal `json:"rate"`
	Allowance decimal.Decimal `json:"allowance"`
}

type ShiftUpdateDTO struct {
	EmployeeID     string           `json:"emp_id"`
	DurationMonth  string           `json:"duration_month"`
	PayrollMonth   string           `json:"payroll_month"`
	Shifts         []ShiftDetailDTO `json:"shifts"`
	TotalDays      decimal.Decimal  `json:"total_days"`
	TotalAllowance decimal.Decimal  `json:"total_allowance"`
}

type LatestMonthDTO struct {
	Month     string `json:"month,omitempty"`
	Available bool   `json:"available"`
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// RowErrorDTO is one rejected record of an upload.
type RowErrorDTO struct {
	Row        int    `json:"row"`
	EmployeeID string `json:"emp_id,omitempty"`
	Error      string `json:"error"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toShiftAmountsDTO(s allowance.ShiftAmounts) ShiftAmountsDTO {
	return ShiftAmountsDTO{
		A:     allowance.Round(s.A),
		B:     allowance.Round(s.B),
		C:     allowance.Round(s.C),
		Prime: allowance.Round(s.Prime),
	}
}

func toGroupTotalDTO(g service.GroupTotal) GroupTotalDTO {
	return GroupTotalDTO{TotalAllowance: allowance.Round(g.TotalAllowance), HeadCount: g.HeadCount}
}

func toComparisonDTO(c service.Comparison) ComparisonDTO {
	out := ComparisonDTO{
		Client:          c.Client,
		ClientCode:      c.ClientCode,
		Months:          make([]MonthComparisonDTO, 0, len(c.Months)),
		HorizontalTotal: make(map[string]GroupTotalDTO, len(c.HorizontalTotal)),
	}
	for _, m := range c.Months {
		md := MonthComparisonDTO{
			Month:         m.Month,
			Message:       m.Message,
			Departments:   make([]DepartmentComparisonDTO, 0, len(m.Departments)),
			VerticalTotal: toGroupTotalDTO(m.VerticalTotal),
		}
		for _, d := range m.Departments {
			dd := DepartmentComparisonDTO{
				Department:    d.Department,
				GroupTotalDTO: toGroupTotalDTO(d.GroupTotal),
				Diff:          allowance.Round(d.Diff),
				Employees:     make([]EmployeeDTO, 0, len(d.Employees)),
			}
			for _, e := range d.Employees {
				dd.Employees = append(dd.Employees, EmployeeDTO{
					EmployeeID:   e.EmployeeID,
					EmployeeName: e.EmployeeName,
					TotalsDTO: TotalsDTO{
						Allowance:      toShiftAmountsDTO(e.Allowance),
						TotalAllowance: allowance.Round(e.Total),
						HeadCount:      1,
					},
				})
			}
			md.Departments = append(md.Departments, dd)
		}
		out.Months = append(out.Months, md)
	}
	for dept, g := range c.HorizontalTotal {
		out.HorizontalTotal[dept] = toGroupTotalDTO(g)
	}
	return out
}

// toClientTotalDTOs drops the shift breakdown when withDays is false.
func toClientTotalDTOs(cs []service.ClientTotal, withDays bool) []ClientTotalDTO {
	out := make([]ClientTotalDTO, 0, len(cs))
	for _, c := range cs {
		d := ClientTotalDTO{
			Client:         c.Client,
			ClientCode:     c.ClientCode,
			HeadCount:      c.HeadCount,
			TotalDays:      allowance.Round(c.TotalDays),
			TotalAllowance: allowance.Round(c.TotalAllowance),
		}
		if withDays {
			days := toShiftAmountsDTO(c.Days)
			d.Days = &days
		}
		out = append(out, d)
	}
	return out
}

func toClientGraphDTO(g service.ClientGraph) ClientGraphDTO {
	out := ClientGraphDTO{Client: g.Client, ClientCode: g.ClientCode, Year: g.Year}
	for _, m := range g.Months {
		out.Months = append(out.Months, MonthTotalDTO{Month: m.Month, Key: m.Key, Total: allowance.Round(m.Total)})
	}
	return out
}

func toSearchResultDTO(r service.SearchResult) SearchResultDTO {
	out := SearchResultDTO{
		TotalRecords:   r.TotalRecords,
		ShiftDays:      roundMap(r.ShiftDays),
		HeadCount:      r.HeadCount,
		TotalAllowance: allowance.Round(r.TotalAllowance),
		Employees:      make([]SearchRowDTO, 0, len(r.Employees)),
	}
	for _, m := range r.Months {
		out.Months = append(out.Months, m.String())
	}
	for _, e := range r.Employees {
		out.Employees = append(out.Employees, SearchRowDTO{
			EmployeeID:     e.EmployeeID,
			EmployeeName:   e.EmployeeName,
			Grade:          e.Grade,
			Client:         e.Client,
			ClientCode:     e.ClientCode,
			Department:     e.Department,
			Project:        e.Project,
			AccountManager: e.AccountManager,
			DurationMonth:  e.DurationMonth.String(),
			PayrollMonth:   e.PayrollMonth.String(),
			ShiftDays:      roundMap(e.ShiftDays),
			TotalAllowance: allowance.Round(e.TotalAllowance),
		})
	}
	return out
}

func toShiftUpdateDTO(u service.ShiftUpdate) ShiftUpdateDTO {
	out := ShiftUpdateDTO{
		EmployeeID:     u.Key.EmployeeID,
		DurationMonth:  u.Key.DurationMonth.String(),
		PayrollMonth:   u.Key.PayrollMonth.String(),
		TotalDays:      allowance.Round(u.TotalDays),
		TotalAllowance: allowance.Round(u.TotalAllowance),
	}
	for _, s := range u.Shifts {
		out.Shifts = append(out.Shifts, ShiftDetailDTO{
			ShiftType: string(s.ShiftType),
			Days:      s.Days,
			Rate:      s.Rate,
			Allowance: allowance.Round(s.Allowance),
		})
	}
	return out
}

func toUploadDTO(u sqlite.Upload) UploadDTO {
	return UploadDTO{
		ID:          u.ID,
		Source:      u.Source,
		RecordCount: u.RecordCount,
		Inserted:    u.Inserted,
		Replaced:    u.Replaced,
		UploadedAt:  u.UploadedAt.Format(time.RFC3339),
	}
}

// record converts a validated RecordDTO. An unknown shift label fails the row.
func (d RecordDTO) record() (allowance.Record, error) {
	duration, err := allowance.ParseMonth(d.DurationMonth)
	if err != nil {
		return allowance.Record{}, err
	}
	payroll, err := allowance.ParseMonth(d.PayrollMonth)
	if err != nil {
		return allowance.Record{}, err
	}
	shifts := make(map[allowance.ShiftType]decimal.Decimal, len(d.Shifts))
	for label, days := range d.Shifts {
		st, ok := allowance.ParseShiftType(label)
		if !ok {
			return allowance.Record{}, &allowance.UnknownShiftTypeError{Label: label}
		}
		shifts[st] = shifts[st].Add(days)
	}
	return allowance.Record{
		EmployeeID:     d.EmployeeID,
		EmployeeName:   d.EmployeeName,
		Grade:          d.Grade,
		Client:         d.Client,
		Department:     d.Department,
		Project:        d.Project,
		AccountManager: d.AccountManager,
		DurationMonth:  duration,
		PayrollMonth:   payroll,
		Shifts:         shifts,
	}, nil
}

func roundMap(m map[string]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(m))
	for k, v := range m {
		out[k] = allowance.Round(v)
	}
	return out
}
