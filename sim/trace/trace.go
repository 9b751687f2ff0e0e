package trace

// Level controls the verbosity of decision tracing.
type Level string

const (
	// LevelNone disables tracing (zero overhead).
	LevelNone Level = "none"
	// LevelDecisions captures routing, halt, and dwell decisions.
	LevelDecisions Level = "decisions"
)

// validLevels maps accepted trace level strings.
var validLevels = map[Level]bool{
	LevelNone:      true,
	LevelDecisions: true,
	"":             true, // empty defaults to none
}

// IsValidLevel returns true if the given level string is a recognized trace level.
func IsValidLevel(level string) bool {
	return validLevels[Level(level)]
}

// SimulationTrace collects decision records during a run.
// Nil *SimulationTrace is safe to record into and records nothing.
type SimulationTrace struct {
	Level  Level
	Routes []RouteRecord
	Halts  []HaltRecord
	Dwells []DwellRecord
}

// New creates a SimulationTrace ready for recording.
func New(level Level) *SimulationTrace {
	return &SimulationTrace{
		Level:  level,
		Routes: make([]RouteRecord, 0),
		Halts:  make([]HaltRecord, 0),
		Dwells: make([]DwellRecord, 0),
	}
}

// enabled reports whether records should be kept.
func (st *SimulationTrace) enabled() bool {
	return st != nil && st.Level == LevelDecisions
}

// RecordRoute appends a routing decision record.
func (st *SimulationTrace) RecordRoute(record RouteRecord) {
	if st.enabled() {
		st.Routes = append(st.Routes, record)
	}
}

// RecordHalt appends a capacity halt record.
func (st *SimulationTrace) RecordHalt(record HaltRecord) {
	if st.enabled() {
		st.Halts = append(st.Halts, record)
	}
}

// RecordDwell appends a dwell start record.
func (st *SimulationTrace) RecordDwell(record DwellRecord) {
	if st.enabled() {
		st.Dwells = append(st.Dwells, record)
	}
}
