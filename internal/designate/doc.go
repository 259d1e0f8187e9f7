// Package designate assigns designations (part numbers) to a convector
// project.
//
// Instances of the top assembly are numbered by component identity in the
// order the CAD engine enumerates them: the first distinct name gets 001,
// the next 002, and every instance sharing a name shares its number.
// Instances with an empty designation or one starting with the reserved
// prefix are auxiliary and take no part in numbering.
//
// The number becomes a designation according to the identity's category:
//
//	purchased  designation kept as is
//	housing    {prefix}.{H}.{B1}.{L1}.{seq}
//	standard   {prefix}.{H}.{B1}.{seq}
//
// The Engine then writes the designations into the part files themselves and
// renames parts and drawings to match, once no document is open anymore.
package designate
