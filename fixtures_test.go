package segment

const profiles = "HARMONIZED.PROFILES"

var (
	attrTier = AttributeDefinition{
		Name:        "TIER",
		Label:       "Tier",
		DataType:    "VARCHAR",
		SourceTable: profiles,
		Category:    "Profile",
	}
	attrIncome = AttributeDefinition{
		Name:        "INCOME_LEVEL",
		Label:       "Income Level",
		DataType:    "VARCHAR(16)",
		SourceTable: profiles,
		Category:    "Profile",
	}
	attrAge = AttributeDefinition{
		Name:        "AGE",
		Label:       "Age",
		DataType:    "NUMBER(38,0)",
		SourceTable: profiles,
		Category:    "Profile",
	}
	attrActive = AttributeDefinition{
		Name:        "IS_ACTIVE",
		Label:       "Is Active",
		DataType:    "BOOLEAN",
		SourceTable: "HARMONIZED.ENGAGEMENT",
		Category:    "Engagement",
	}
	attrSignup = AttributeDefinition{
		Name:        "SIGNUP_DATE",
		Label:       "Signup Date",
		DataType:    "DATE",
		SourceTable: "HARMONIZED.ENGAGEMENT",
		Category:    "Engagement",
	}
	attrSeen = AttributeDefinition{
		Name:        "SEEN_AT",
		Label:       "Seen At",
		DataType:    "TIMESTAMP_NTZ(9)",
		SourceTable: "HARMONIZED.ENGAGEMENT",
		Category:    "Engagement",
	}
)

func testIndex() *AttributeIndex {
	return NewAttributeIndex([]AttributeDefinition{attrTier, attrIncome, attrAge, attrActive, attrSignup})
}

// cond returns a condition with a fixed ID, for building trees by hand.
func cond(id string, def AttributeDefinition, op Operator, value string) *Condition {
	return &Condition{ID: id, AttributeKey: def.Key(), Operator: op, Value: value}
}

func group(id string, logic Logic, children ...Node) *Group {
	if children == nil {
		children = []Node{}
	}
	return &Group{ID: id, Name: id, Logic: logic, Children: children}
}

func rootGroup(logic Logic, children ...Node) *Group {
	g := group("root", logic, children...)
	g.IsRoot = true
	return g
}
