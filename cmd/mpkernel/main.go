// Command mpkernel boots the memory subsystem of a simulated x86 machine and
// runs the page table and VM pool memory tests against it.
package main

func main() {
	execute()
}
