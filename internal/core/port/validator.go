package port

// StatementValidator vets generated SQL before it is executed.
type StatementValidator interface {
	Validate(sql string) error
}
