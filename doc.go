// Package unpack recursively unpacks archives and compressed streams found
// below a set of file-system roots.
//
// Every file is run through a fixed cascade of format probes (generic
// archives, single-stream compressors, RPM packages and RAR archives). Entries
// of a decoded archive are written below a deterministic extraction directory
// and are processed again, until no probe recognizes any produced file.
// Each visited path ends up in one of the classification buckets of the
// returned [Report].
//
// Configuration is done using the [Config], which is created with [NewConfig]
// and adjusted with the option pattern. [ExtractZipFiles] offers a parallel,
// wave based variant for flat collections of zip-family archives.
package unpack
