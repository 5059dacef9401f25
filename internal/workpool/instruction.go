package workpool

// Instruction is a tagged description of one subprocess invocation, as
// synthesized by the Instructor (§4.2/§4.3).
type Instruction interface {
	isInstruction()
}

// Compile invokes the C compiler to produce an object file.
type Compile struct {
	SourceFile  string
	IncludeDirs []string
	OutputFile  string
}

func (Compile) isInstruction() {}

// Link invokes the C compiler as linker to produce an executable.
type Link struct {
	ObjectFiles   []string
	LinkLibraries []string
	OutputFile    string
}

func (Link) isInstruction() {}

// JobID is an opaque, monotonically increasing handle correlating a
// scheduled instruction with its eventual result.
type JobID uint64

// Result is what a worker reports back for a given job.
type Result struct {
	JobID       JobID
	WorkerIndex int
	Stdout      string
	Err         error
}
