package logger

// Standard field keys for structured logging. Use these keys consistently
// across all log statements so logs aggregate and query cleanly.
const (
	// Request scope
	KeyRequestID = "request_id" // HTTP request id from chi middleware
	KeyClientIP  = "client_ip"  // Client IP address (without port)

	// Pipeline scope
	KeyProject   = "project"    // Project id owning the pipeline
	KeyBlock     = "block"      // Block instance id
	KeyBlockName = "block_name" // Block type name from the catalogue

	// Image scope
	KeyImage    = "image"    // Image UUID (input or derived)
	KeyInput    = "input"    // Initial input image UUID of an evaluation
	KeyOutput   = "output"   // Output image UUID of an evaluation
	KeyPath     = "path"     // Filesystem path in the image store
	KeyFilename = "filename" // Original upload filename
	KeyWidth    = "width"    // Thumbnail width

	// Execution
	KeyCommand  = "command"   // External command path
	KeyArgs     = "args"      // Subprocess argv
	KeyExitCode = "exit_code" // Subprocess exit code

	// Operation metadata
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
)
