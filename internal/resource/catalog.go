package resource

import (
	"fmt"
	"regexp"
	"sort"
)

// Catalog 资源描述集合
type Catalog struct {
	byName map[string]*Descriptor
	order  []string
}

// NewCatalog 校验并注册描述
func NewCatalog(descs ...*Descriptor) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]*Descriptor, len(descs))}
	for _, d := range descs {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byName[d.Name]; dup {
			return nil, fmt.Errorf("duplicate resource %s", d.Name)
		}
		c.byName[d.Name] = d
		c.order = append(c.order, d.Name)
	}
	for _, d := range descs {
		for _, lk := range d.Lookups {
			if _, ok := c.byName[lk.Resource]; !ok {
				return nil, fmt.Errorf("descriptor %s: lookup resource %s not registered", d.Name, lk.Resource)
			}
		}
	}
	return c, nil
}

// Get 按名称查找
func (c *Catalog) Get(name string) (*Descriptor, bool) {
	d, ok := c.byName[name]
	return d, ok
}

// All 按注册顺序返回
func (c *Catalog) All() []*Descriptor {
	out := make([]*Descriptor, 0, len(c.order))
	for _, n := range c.order {
		out = append(out, c.byName[n])
	}
	return out
}

// Names 排序后的资源名
func (c *Catalog) Names() []string {
	out := append([]string(nil), c.order...)
	sort.Strings(out)
	return out
}

var (
	phonePattern  = regexp.MustCompile(`^[6-9][0-9]{9}$`)
	panPattern    = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	amountPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]{1,2})?$`)
	emailPattern  = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	entryPattern  = regexp.MustCompile(`^(Credit|Debit)$`)
	genderPattern = regexp.MustCompile(`^(Male|Female)$`)
)

func phoneRule(field string) Rule {
	return Rule{Field: field, Pattern: phonePattern, Message: "Enter a valid 10 digit mobile number"}
}

func panRule(field string) Rule {
	return Rule{Field: field, Pattern: panPattern, Message: "PAN must look like ABCDE1234F"}
}

func aadhaarRule(field string) Rule {
	return Rule{Field: field, Length: 12, Digits: true, Message: "Aadhaar number must be 12 digits"}
}

func amountRule(field string) Rule {
	return Rule{Field: field, Pattern: amountPattern, Message: "Enter a valid amount"}
}

func emailRule(field string) Rule {
	return Rule{Field: field, Pattern: emailPattern, Message: "Enter a valid email address"}
}

func columns(d *Descriptor, fields ...string) []Column {
	out := make([]Column, 0, len(fields))
	for _, f := range fields {
		out = append(out, Column{Field: f, Label: d.Label(f)})
	}
	return out
}

// DefaultCatalog 内置资源：员工、信众、gotra、牛只及其管理/处方、库存、收入、支出、seva、寺庙资料、考勤、现金账
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(defaultDescriptors()...)
	if err != nil {
		panic(fmt.Sprintf("resource: invalid default catalog: %v", err))
	}
	return c
}

func defaultDescriptors() []*Descriptor {
	employees := &Descriptor{
		Name: "employees", Title: "Employees", Endpoint: "employees", Envelope: "employees",
		Fields: []Field{
			{Name: "EmployeeName", Label: "Employee Name"},
			{Name: "Designation", Label: "Designation"},
			{Name: "Phone", Label: "Phone"},
			{Name: "Email", Label: "Email"},
			{Name: "City", Label: "City"},
			{Name: "Address", Label: "Address"},
			{Name: "PanNumber", Label: "PAN Number"},
			{Name: "AadhaarNumber", Label: "Aadhaar Number"},
			{Name: "JoiningDate", Label: "Joining Date", Kind: KindDate},
			{Name: "Salary", Label: "Salary", Kind: KindNumber},
		},
		// Email / City / Address 在界面上带标签但不是必填
		Required:   []string{"EmployeeName", "Designation", "Phone", "JoiningDate"},
		Rules:      []Rule{phoneRule("Phone"), emailRule("Email"), panRule("PanNumber"), aadhaarRule("AadhaarNumber"), amountRule("Salary")},
		Searchable: []string{"EmployeeName", "Phone", "City", "Designation"},
	}
	employees.ExportColumns = columns(employees, "EmployeeName", "Designation", "Phone", "Email", "City", "JoiningDate", "Salary")

	gotra := &Descriptor{
		Name: "gotra", Title: "Gotra", Endpoint: "gotra", IDField: "id",
		Fields: []Field{
			{Name: "GotraName", Label: "Gotra Name"},
			{Name: "Description", Label: "Description"},
		},
		Required:   []string{"GotraName"},
		Searchable: []string{"GotraName"},
	}
	gotra.ExportColumns = columns(gotra, "GotraName", "Description")

	devotees := &Descriptor{
		Name: "devotees", Title: "Devotees", Endpoint: "devotees", Envelope: "data",
		Fields: []Field{
			{Name: "DevoteeName", Label: "Devotee Name"},
			{Name: "Phone", Label: "Phone"},
			{Name: "Email", Label: "Email"},
			{Name: "City", Label: "City"},
			{Name: "Address", Label: "Address"},
			{Name: "GotraId", Label: "Gotra", Kind: KindNumber},
			{Name: "PanNumber", Label: "PAN Number"},
			{Name: "DateOfBirth", Label: "Date of Birth", Kind: KindDate},
		},
		Required:   []string{"DevoteeName", "Phone"},
		Rules:      []Rule{phoneRule("Phone"), emailRule("Email"), panRule("PanNumber")},
		Searchable: []string{"DevoteeName", "Phone", "City", "GotraName"},
		Lookups:    []Lookup{{Field: "GotraId", Resource: "gotra", KeyField: "id", LabelField: "GotraName", As: "GotraName"}},
	}
	devotees.ExportColumns = append(columns(devotees, "DevoteeName", "Phone", "Email", "City"),
		Column{Field: "GotraName", Label: "Gotra"})

	cows := &Descriptor{
		Name: "cows", Title: "Cow Registry", Endpoint: "cows", Envelope: "data",
		Fields: []Field{
			{Name: "CowName", Label: "Cow Name"},
			{Name: "TagNumber", Label: "Tag Number"},
			{Name: "Breed", Label: "Breed"},
			{Name: "Gender", Label: "Gender"},
			{Name: "DateOfBirth", Label: "Date of Birth", Kind: KindDate},
			{Name: "Color", Label: "Color"},
			{Name: "MotherTag", Label: "Mother Tag"},
			{Name: "Status", Label: "Status"},
		},
		Required:   []string{"CowName", "TagNumber", "Breed"},
		Rules:      []Rule{{Field: "Gender", Pattern: genderPattern, Message: "Gender must be Male or Female"}},
		Searchable: []string{"CowName", "TagNumber", "Breed", "Status"},
	}
	cows.ExportColumns = columns(cows, "TagNumber", "CowName", "Breed", "Gender", "DateOfBirth", "Status")

	cowManagement := &Descriptor{
		Name: "cow-management", Title: "Cow Management", Endpoint: "cowmanagement",
		Fields: []Field{
			{Name: "CowId", Label: "Cow", Kind: KindNumber},
			{Name: "Date", Label: "Date", Kind: KindDate},
			{Name: "Activity", Label: "Activity"},
			{Name: "MilkLitres", Label: "Milk (L)", Kind: KindNumber},
			{Name: "Notes", Label: "Notes"},
			{Name: "HandledBy", Label: "Handled By"},
		},
		Required:   []string{"CowId", "Date", "Activity"},
		Rules:      []Rule{amountRule("MilkLitres")},
		Searchable: []string{"CowName", "Activity", "HandledBy"},
		Lookups:    []Lookup{{Field: "CowId", Resource: "cows", LabelField: "CowName", As: "CowName"}},
	}
	cowManagement.ExportColumns = append([]Column{{Field: "CowName", Label: "Cow"}},
		columns(cowManagement, "Date", "Activity", "MilkLitres", "HandledBy", "Notes")...)

	cowPrescriptions := &Descriptor{
		Name: "cow-prescriptions", Title: "Cow Prescriptions", Endpoint: "cowprescriptions",
		Fields: []Field{
			{Name: "CowId", Label: "Cow", Kind: KindNumber},
			{Name: "Date", Label: "Date", Kind: KindDate},
			{Name: "DoctorName", Label: "Doctor"},
			{Name: "Diagnosis", Label: "Diagnosis"},
			{Name: "Medicine", Label: "Medicine"},
			{Name: "Dosage", Label: "Dosage"},
			{Name: "NextVisit", Label: "Next Visit", Kind: KindDate},
		},
		Required:   []string{"CowId", "Date", "DoctorName", "Medicine"},
		Searchable: []string{"CowName", "DoctorName", "Diagnosis", "Medicine"},
		Lookups:    []Lookup{{Field: "CowId", Resource: "cows", LabelField: "CowName", As: "CowName"}},
	}
	cowPrescriptions.ExportColumns = append([]Column{{Field: "CowName", Label: "Cow"}},
		columns(cowPrescriptions, "Date", "DoctorName", "Diagnosis", "Medicine", "Dosage", "NextVisit")...)

	stock := &Descriptor{
		Name: "stock", Title: "Stock", Endpoint: "stock", Envelope: "data",
		Fields: []Field{
			{Name: "ItemName", Label: "Item Name"},
			{Name: "Category", Label: "Category"},
			{Name: "Quantity", Label: "Quantity", Kind: KindNumber},
			{Name: "Unit", Label: "Unit"},
			{Name: "Rate", Label: "Rate", Kind: KindNumber},
			{Name: "PurchaseDate", Label: "Purchase Date", Kind: KindDate},
			{Name: "Supplier", Label: "Supplier"},
		},
		Required:   []string{"ItemName", "Quantity", "Unit"},
		Rules:      []Rule{amountRule("Quantity"), amountRule("Rate")},
		Searchable: []string{"ItemName", "Category", "Supplier"},
	}
	stock.ExportColumns = columns(stock, "ItemName", "Category", "Quantity", "Unit", "Rate", "PurchaseDate", "Supplier")

	income := &Descriptor{
		Name: "income", Title: "Income", Endpoint: "income", Envelope: "data",
		Fields: []Field{
			{Name: "Date", Label: "Date", Kind: KindDate},
			{Name: "Source", Label: "Source"},
			{Name: "Amount", Label: "Amount", Kind: KindNumber},
			{Name: "PaymentMode", Label: "Payment Mode"},
			{Name: "ReceivedFrom", Label: "Received From"},
			{Name: "ReceiptNumber", Label: "Receipt No."},
			{Name: "Remarks", Label: "Remarks"},
		},
		Required:   []string{"Date", "Source", "Amount"},
		Rules:      []Rule{amountRule("Amount")},
		Searchable: []string{"Source", "ReceivedFrom", "ReceiptNumber", "PaymentMode"},
	}
	income.ExportColumns = columns(income, "Date", "ReceiptNumber", "Source", "ReceivedFrom", "PaymentMode", "Amount", "Remarks")

	expenses := &Descriptor{
		Name: "expenses", Title: "Expenses", Endpoint: "expenses", Envelope: "data",
		Fields: []Field{
			{Name: "Date", Label: "Date", Kind: KindDate},
			{Name: "Category", Label: "Category"},
			{Name: "Amount", Label: "Amount", Kind: KindNumber},
			{Name: "PaymentMode", Label: "Payment Mode"},
			{Name: "PaidTo", Label: "Paid To"},
			{Name: "VoucherNumber", Label: "Voucher No."},
			{Name: "Remarks", Label: "Remarks"},
		},
		Required:   []string{"Date", "Category", "Amount"},
		Rules:      []Rule{amountRule("Amount")},
		Searchable: []string{"Category", "PaidTo", "VoucherNumber", "PaymentMode"},
	}
	expenses.ExportColumns = columns(expenses, "Date", "VoucherNumber", "Category", "PaidTo", "PaymentMode", "Amount", "Remarks")

	seva := &Descriptor{
		Name: "seva", Title: "Seva", Endpoint: "seva",
		Fields: []Field{
			{Name: "SevaName", Label: "Seva"},
			{Name: "DevoteeId", Label: "Devotee", Kind: KindNumber},
			{Name: "SevaDate", Label: "Seva Date", Kind: KindDate},
			{Name: "Amount", Label: "Amount", Kind: KindNumber},
			{Name: "Status", Label: "Status"},
		},
		Required:   []string{"SevaName", "DevoteeId", "SevaDate"},
		Rules:      []Rule{amountRule("Amount")},
		Searchable: []string{"SevaName", "DevoteeName", "Status"},
		Lookups:    []Lookup{{Field: "DevoteeId", Resource: "devotees", LabelField: "DevoteeName", As: "DevoteeName"}},
	}
	seva.ExportColumns = []Column{
		{Field: "SevaName", Label: "Seva"},
		{Field: "DevoteeName", Label: "Devotee"},
		{Field: "SevaDate", Label: "Seva Date"},
		{Field: "Amount", Label: "Amount"},
		{Field: "Status", Label: "Status"},
	}

	templeProfile := &Descriptor{
		Name: "temple-profile", Title: "Temple Profile", Endpoint: "templeprofile",
		Fields: []Field{
			{Name: "TempleName", Label: "Temple Name"},
			{Name: "TrustName", Label: "Trust Name"},
			{Name: "RegistrationNumber", Label: "Registration No."},
			{Name: "Phone", Label: "Phone"},
			{Name: "Email", Label: "Email"},
			{Name: "Address", Label: "Address"},
			{Name: "City", Label: "City"},
			{Name: "State", Label: "State"},
			{Name: "Pincode", Label: "Pincode"},
			{Name: "PanNumber", Label: "PAN Number"},
		},
		Required: []string{"TempleName", "TrustName", "Phone"},
		Rules: []Rule{
			phoneRule("Phone"), emailRule("Email"), panRule("PanNumber"),
			{Field: "Pincode", Length: 6, Digits: true, Message: "Pincode must be 6 digits"},
		},
		Searchable: []string{"TempleName", "TrustName", "City"},
	}
	templeProfile.ExportColumns = columns(templeProfile, "TempleName", "TrustName", "RegistrationNumber", "Phone", "Email", "City", "State", "Pincode")

	attendance := &Descriptor{
		Name: "attendance", Title: "Attendance", Endpoint: "attendance", Envelope: "data",
		Fields: []Field{
			{Name: "EmployeeId", Label: "Employee", Kind: KindNumber},
			{Name: "Date", Label: "Date", Kind: KindDate},
			{Name: "Status", Label: "Status"},
			{Name: "InTime", Label: "In Time"},
			{Name: "OutTime", Label: "Out Time"},
		},
		Required:   []string{"EmployeeId", "Date", "Status"},
		Searchable: []string{"EmployeeName", "Status", "Date"},
		Lookups:    []Lookup{{Field: "EmployeeId", Resource: "employees", LabelField: "EmployeeName", As: "EmployeeName"}},
	}
	attendance.ExportColumns = append([]Column{{Field: "EmployeeName", Label: "Employee"}},
		columns(attendance, "Date", "Status", "InTime", "OutTime")...)

	cashbook := &Descriptor{
		Name: "cashbook", Title: "Cashbook", Endpoint: "cashbook", Envelope: "data",
		Fields: []Field{
			{Name: "Date", Label: "Date", Kind: KindDate},
			{Name: "Particulars", Label: "Particulars"},
			{Name: "EntryType", Label: "Type"},
			{Name: "Amount", Label: "Amount", Kind: KindNumber},
			{Name: "Balance", Label: "Balance", Kind: KindNumber},
		},
		Required:   []string{"Date", "Particulars", "EntryType", "Amount"},
		Rules:      []Rule{amountRule("Amount"), {Field: "EntryType", Pattern: entryPattern, Message: "Type must be Credit or Debit"}},
		Searchable: []string{"Particulars", "EntryType", "Date"},
	}
	cashbook.ExportColumns = columns(cashbook, "Date", "Particulars", "EntryType", "Amount", "Balance")

	return []*Descriptor{
		employees, gotra, devotees, cows, cowManagement, cowPrescriptions,
		stock, income, expenses, seva, templeProfile, attendance, cashbook,
	}
}
